// Package retry wraps calls to external systems with a uniform retry
// contract: HTTP 5xx and transport failures are retried with exponential
// backoff, HTTP 4xx fails immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusError carries an HTTP-like status code so the policy can classify
// a failure without inspecting response bodies.
type StatusError struct {
	Code int
	Op   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d", e.Op, e.Code)
}

// NewStatusError builds a StatusError for the named operation.
func NewStatusError(op string, code int) *StatusError {
	return &StatusError{Code: code, Op: op}
}

// Retriable reports whether err should be retried: 5xx status codes and
// everything that is not a StatusError (transport failures, timeouts).
// Context cancellation is never retried.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}

// Fatal reports whether err is a non-retriable client error (4xx).
func Fatal(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError
	}
	return false
}

// Policy retries an operation up to MaxRetries extra attempts. The sleep
// before the i-th retry (0-indexed) is BackoffFactor * 2^i.
type Policy struct {
	MaxRetries    int
	BackoffFactor float64

	// Sleep is swappable so tests can run on simulated time.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mirrors the reference configuration: two retries, factor 1.5.
func Default() Policy {
	return Policy{MaxRetries: 2, BackoffFactor: 1.5}
}

// Backoff returns the sleep duration before retry attempt i.
func (p Policy) Backoff(i int) time.Duration {
	return time.Duration(p.BackoffFactor * float64(int(1)<<i) * float64(time.Second))
}

// Do runs fn, retrying retriable failures. The last observed error is
// returned once retries are exhausted; fatal errors return immediately.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retriable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		backoff := p.Backoff(attempt)
		log.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("retriable failure, backing off")
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, p.MaxRetries+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
