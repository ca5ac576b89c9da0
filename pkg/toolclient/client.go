package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/internal/tracing"
	"github.com/harun/tanya/pkg/errorx"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/rs/zerolog"
)

// Result is the outcome of one tool execution.
type Result struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	RetryAfter string      `json:"retry_after,omitempty"`
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	CallTimeout time.Duration
	// MaxAttempts bounds HTTP attempts per execution (1 + retries).
	MaxAttempts int
	Catalog     *Catalog
	Breakers    *resilience.BreakerRegistry
	Logger      zerolog.Logger
}

// Client validates and executes named tool calls against external HTTP
// endpoints, feeding every outcome into the owning circuit breaker.
type Client struct {
	baseURL     string
	callTimeout time.Duration
	maxAttempts int
	catalog     *Catalog
	breakers    *resilience.BreakerRegistry
	httpClient  *http.Client
	logger      zerolog.Logger
}

// wireResponse is the outbound tool protocol body: HTTP 200 with
// {success: true, data} on success, {success: false, error} on logical
// failure.
type wireResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// New creates a tool client.
func New(cfg Config) (*Client, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}
	if cfg.Breakers == nil {
		return nil, fmt.Errorf("breaker registry is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		callTimeout: cfg.CallTimeout,
		maxAttempts: cfg.MaxAttempts,
		catalog:     cfg.Catalog,
		breakers:    cfg.Breakers,
		httpClient:  &http.Client{},
		logger:      cfg.Logger,
	}, nil
}

// Catalog returns the client's tool catalog.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// Execute validates params and performs the tool call. Validation failures
// return immediately without consuming a circuit-breaker attempt and are
// retryable: the LLM may resubmit corrected parameters.
func (c *Client) Execute(ctx context.Context, handle string, params map[string]interface{}) Result {
	def := c.catalog.Get(handle)
	if def == nil {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("unknown tool: %s", handle),
			Retryable:  false,
			Suggestion: "use one of the declared tools",
		}
	}

	violations, err := c.catalog.Validate(handle, params)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Retryable: false}
	}
	if len(violations) > 0 {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("invalid parameters: %s", strings.Join(violations, "; ")),
			Retryable:  true,
			Suggestion: "correct the parameters and call the tool again",
		}
	}

	breaker := c.breakers.Get("tool:" + handle)
	if !breaker.CanExecute() {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("service %s is temporarily unavailable", handle),
			Retryable:  true,
			Suggestion: "the service is cooling down, try again later",
		}
	}

	start := time.Now()

	var result Result
	policy := resilience.RetryPolicy{
		MaxAttempts:       c.maxAttempts,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2,
	}

	err = policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = c.call(ctx, def, params)
		if callErr != nil {
			breaker.RecordFailure()
			return callErr
		}
		if result.Success {
			breaker.RecordSuccess()
			return nil
		}
		breaker.RecordFailure()
		if result.Retryable {
			return errorx.New(errorx.CategoryTool, result.Error, true, true)
		}
		return nil
	})
	if err != nil && result.Error == "" {
		result = Result{Success: false, Error: err.Error(), Retryable: errorx.IsRetryable(err)}
	}

	observability.RecordToolExecution(handle, time.Since(start), result.Success)
	observability.SetBreakerOpen("tool:"+handle, breaker.State() == resilience.StateOpen)

	status := "failure"
	if result.Success {
		status = "success"
	}
	observability.RecordToolAudit(ctx, handle, tracing.GetSessionID(ctx), status, nil)

	c.logger.Debug().
		Str("tool", handle).
		Bool("success", result.Success).
		Msg("Tool executed")

	return result
}

// call performs one HTTP POST to the tool endpoint and classifies the
// outcome. Transport errors come back as retryable errorx errors; HTTP and
// logical outcomes come back as a Result with a nil error.
func (c *Client) call(ctx context.Context, def *ToolDefinition, params map[string]interface{}) (Result, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return Result{}, errorx.Wrap(err, errorx.CategoryTool, "failed to encode parameters", true, false)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+def.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, errorx.Wrap(err, errorx.CategoryTool, "failed to build request", true, false)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, errorx.Wrap(err, errorx.CategoryTool, "tool endpoint unreachable", true, true)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errorx.Wrap(err, errorx.CategoryTool, "failed to read response", true, true)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{
			Success:    false,
			Error:      "rate limited by tool endpoint",
			Retryable:  true,
			RetryAfter: resp.Header.Get("Retry-After"),
			Suggestion: "wait before retrying",
		}, nil
	case resp.StatusCode >= 500:
		return Result{
			Success:   false,
			Error:     fmt.Sprintf("tool endpoint error: HTTP %d", resp.StatusCode),
			Retryable: true,
		}, nil
	case resp.StatusCode >= 400:
		return Result{
			Success:   false,
			Error:     fmt.Sprintf("tool rejected request: HTTP %d", resp.StatusCode),
			Retryable: false,
		}, nil
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Result{
			Success:   false,
			Error:     "malformed tool response",
			Retryable: true,
		}, nil
	}

	if !wire.Success {
		// Logical failure maps to the same failure shape as transport failure.
		msg := wire.Error
		if msg == "" {
			msg = "tool reported failure"
		}
		return Result{Success: false, Error: msg, Retryable: false}, nil
	}

	var data interface{}
	if len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, &data); err != nil {
			return Result{Success: false, Error: "malformed tool response data", Retryable: true}, nil
		}
	}

	return Result{Success: true, Data: data}, nil
}
