package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amitk432/Resolve25-sub002/api/rest"
	"github.com/amitk432/Resolve25-sub002/internal/action"
	"github.com/amitk432/Resolve25-sub002/pkg/engine"
	"github.com/amitk432/Resolve25-sub002/pkg/logger"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task engine as an HTTP service",
	Long: `Start the engine with its REST API. Tasks are submitted with
POST /api/v1/tasks and observed through the status and result endpoints.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", ":8080", "listen address")
}

func serve(cmd *cobra.Command, args []string) error {
	eng := engine.New(engine.DefaultConfig())
	if err := eng.RegisterExecutor(action.NewHTTP()); err != nil {
		return err
	}
	if err := eng.RegisterExecutor(action.NewScript()); err != nil {
		return err
	}
	if err := eng.Start(); err != nil {
		return err
	}
	defer func() { _ = eng.Stop() }()

	cfg := rest.DefaultConfig()
	cfg.Address = serveAddress
	cfg.EnableRequestLog = !quiet
	server := rest.NewServer(eng, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown: %v", err)
		}
	}()

	logger.Info("task engine listening on %s", serveAddress)
	if err := server.Start(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
