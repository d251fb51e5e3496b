package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// HTTPType is the step type handled by the HTTP executor.
const HTTPType = "http"

// DefaultHTTPTimeout bounds a probe when neither the step nor the context
// carries a deadline.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPExecutor probes a step's target URL. The step value selects the
// method (GET when empty); any status >= 400 is a step failure.
type HTTPExecutor struct {
	client *fasthttp.Client
}

// NewHTTP creates an HTTP executor with a shared client.
func NewHTTP() *HTTPExecutor {
	return &HTTPExecutor{
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         DefaultHTTPTimeout,
			WriteTimeout:        DefaultHTTPTimeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (e *HTTPExecutor) Type() string { return HTTPType }

// HTTPResult is the output of a successful probe.
type HTTPResult struct {
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	BodyBytes  int           `json:"body_bytes"`
}

func (e *HTTPExecutor) Execute(ctx context.Context, step *types.Step, execCtx *types.ExecutionContext) (any, error) {
	if step.Target == "" {
		return nil, fmt.Errorf("http step %s has no target url", step.ID)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	method := strings.ToUpper(strings.TrimSpace(step.Value))
	if method == "" {
		method = fasthttp.MethodGet
	}
	req.Header.SetMethod(method)
	req.SetRequestURI(step.Target)

	timeout := DefaultHTTPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	start := time.Now()
	if err := e.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("http probe %s %s: %w", method, step.Target, err)
	}

	result := &HTTPResult{
		StatusCode: resp.StatusCode(),
		Duration:   time.Since(start),
		BodyBytes:  len(resp.Body()),
	}
	if result.StatusCode >= fasthttp.StatusBadRequest {
		return result, fmt.Errorf("http probe %s %s: status %d", method, step.Target, result.StatusCode)
	}
	return result, nil
}
