// Package rest exposes the task engine over HTTP: task submission, status,
// abort and result retrieval.
package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/amitk432/Resolve25-sub002/pkg/engine"
)

// Config holds the configuration for the REST server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing.
	EnableCORS bool `yaml:"enable_cors"`

	// EnableRequestLog enables per-request logging.
	EnableRequestLog bool `yaml:"enable_request_log"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:          ":8080",
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		EnableCORS:       true,
		EnableRequestLog: true,
	}
}

// Server serves the task engine API.
type Server struct {
	app    *fiber.App
	engine *engine.Engine
	config *Config
}

// NewServer creates a REST server around an engine.
func NewServer(eng *engine.Engine, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorHandler: errorHandler,
		AppName:      "Task Engine API",
	})

	server := &Server{
		app:    app,
		engine: eng,
		config: config,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.app.Use(fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
	}))

	if s.config.EnableRequestLog {
		s.app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
			MaxAge:       86400,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.healthCheck)

	api.Get("/workers", s.listWorkers)
	api.Post("/tasks", s.submitTask)
	api.Get("/tasks/:id", s.getTask)
	api.Delete("/tasks/:id", s.abortTask)
	api.Get("/tasks/:id/result", s.getTaskResult)
}

// Start begins listening. It blocks until Shutdown.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "request_failed",
		Message: message,
	})
}
