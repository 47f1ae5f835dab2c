package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// Policy runs op until it succeeds or the policy gives up. onRetry, when
// set, is called with the failed attempt number before waiting.
type Policy interface {
	Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error
}

// Backoff retries up to MaxAttempts times, waiting an exponentially growing
// delay between Min and Max.
type Backoff struct {
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      bool
}

func NewBackoff(maxAttempts int, minDelay, maxDelay time.Duration) Backoff {
	return Backoff{
		MaxAttempts: maxAttempts,
		Min:         minDelay,
		Max:         maxDelay,
		Factor:      2,
		Jitter:      true,
	}
}

func (p Backoff) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	delays := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: p.Factor, Jitter: p.Jitter}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		var permanent *permanentError
		if errors.As(err, &permanent) {
			return permanent.err
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		wait := delays.Duration()
		if p.Max <= 0 {
			wait = 0
		}
		if wait <= 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

type Once struct{}

func (Once) Do(ctx context.Context, op func(ctx context.Context) error, _ func(int, error)) error {
	err := op(ctx)
	var permanent *permanentError
	if errors.As(err, &permanent) {
		return permanent.err
	}
	return err
}

// Permanent marks err as not worth another attempt. Do returns the
// unwrapped err immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }
