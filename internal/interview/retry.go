package interview

import (
	"context"
	"math"
	"time"
)

// backoff is an exponential delay schedule: initial * multiplier^attempt, capped at max.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

func newBackoff(initial time.Duration) backoff {
	return backoff{initial: initial, max: 10 * initial, multiplier: 2}
}

func (b backoff) delay(attempt int) time.Duration {
	d := float64(b.initial) * math.Pow(b.multiplier, float64(attempt))
	if d > float64(b.max) {
		d = float64(b.max)
	}
	return time.Duration(d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
