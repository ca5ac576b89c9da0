package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// FallbackHandler is one candidate in a fallback chain.
type FallbackHandler struct {
	Name string
	// ShouldTry decides whether this handler applies given the previous
	// handler's error. A nil ShouldTry always applies.
	ShouldTry func(prevErr error) bool
	Run       func(ctx context.Context) (interface{}, error)
}

// FallbackChain tries an ordered list of handlers until one succeeds.
type FallbackChain struct {
	handlers []FallbackHandler
	// Timeout bounds each handler attempt. Zero means no per-handler bound.
	Timeout time.Duration
}

// NewFallbackChain creates a chain over the given handlers.
func NewFallbackChain(handlers ...FallbackHandler) *FallbackChain {
	return &FallbackChain{handlers: handlers}
}

// Execute tries each applicable handler in order, returning the first
// success and the name of the handler that produced it. Exhausting all
// handlers returns the last error.
func (c *FallbackChain) Execute(ctx context.Context) (interface{}, string, error) {
	if len(c.handlers) == 0 {
		return nil, "", fmt.Errorf("fallback chain has no handlers")
	}

	var lastErr error

	for _, handler := range c.handlers {
		if lastErr != nil && handler.ShouldTry != nil && !handler.ShouldTry(lastErr) {
			continue
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		}

		value, err := handler.Run(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return value, handler.Name, nil
		}

		lastErr = err
		log.Debug().
			Str("handler", handler.Name).
			Err(err).
			Msg("Fallback handler failed")

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	if lastErr == nil {
		return nil, "", fmt.Errorf("no applicable fallback handler")
	}
	return nil, "", lastErr
}
