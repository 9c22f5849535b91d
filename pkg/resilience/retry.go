// Package resilience retries the counter's network side effects (writing
// results to PostgreSQL, publishing run events to Kafka). Failures are
// classified: only transient errors are retried, everything else fails the
// first time.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ngramstats/pkg/logger"
)

// RetryConfig bounds attempts and backoff. Retryable classifies errors that
// are neither permanent nor context errors; nil treats them all as transient.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Retryable      func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether err may succeed on another attempt under cfg.
// Permanent errors, context errors, bad input and broken invariants never do.
func IsTransient(err error, cfg RetryConfig) bool {
	var p *permanentError
	switch {
	case err == nil:
		return false
	case errors.As(err, &p):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvariant):
		return false
	case cfg.Retryable != nil:
		return cfg.Retryable(err)
	default:
		return true
	}
}

// Error reports the attempts made before Retry gave up.
type Error struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retry calls fn until it succeeds, returns a non-transient error, attempts
// run out or ctx ends. Failures are returned as *Error.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	log := logger.WithComponent("retry").With("operation", name)
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == cfg.MaxAttempts || !IsTransient(err, cfg) {
			return &Error{Operation: name, Attempts: attempt, Err: err}
		}
		if ctx.Err() != nil {
			return &Error{Operation: name, Attempts: attempt, Err: ctx.Err()}
		}
		delay := computeDelay(attempt, cfg)
		log.Warn("transient failure, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", err,
			"next_delay", delay,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &Error{Operation: name, Attempts: attempt, Err: ctx.Err()}
		}
	}
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	backoff += backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	switch {
	case backoff > float64(cfg.MaxDelay):
		return cfg.MaxDelay
	case backoff < 0:
		return cfg.InitialDelay
	}
	return time.Duration(backoff)
}
