package adapters

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// RateLimitedCompleter throttles calls to the wrapped Completer.
type RateLimitedCompleter struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimitedCompleter limits next to rps requests per second. A non-positive
// rps disables limiting and returns next unchanged.
func NewRateLimitedCompleter(next Completer, rps float64, burst int) Completer {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedCompleter{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *RateLimitedCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait gives up early when the next token is past the deadline.
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("completion rate limit: %w", wrapErr("wait", err))
	}
	return c.next.Complete(ctx, req)
}

// HealthCheck forwards to the wrapped completer when it supports probing.
func (c *RateLimitedCompleter) HealthCheck(ctx context.Context) error {
	if hc, ok := c.next.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
