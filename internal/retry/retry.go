// Package retry provides the single bounded-retry-with-backoff wrapper used
// by discovery and execution, so backoff and timeout semantics are uniform
// across all call sites.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spl-distributor/internal/observability"
)

// Default configuration values.
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 1 * time.Second
	DefaultMaxDelay       = 10 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// ExhaustedError is returned when all attempts fail. It carries the attempt
// count and the last underlying cause; the caller decides whether that is
// fatal to a record or fatal to the run.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts exhausted: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps an error so the controller stops retrying and returns it
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Controller wraps fallible operations with bounded attempts, exponential
// backoff, and a hard per-attempt timeout race.
type Controller struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	attemptTimeout time.Duration
}

// Option configures Controller.
type Option func(*Controller)

// WithMaxAttempts sets the maximum attempt count.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		c.maxAttempts = n
	}
}

// WithBaseDelay sets the pre-backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.baseDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.maxDelay = d
	}
}

// WithAttemptTimeout sets the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.attemptTimeout = d
	}
}

// NewController creates a Controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		maxDelay:       DefaultMaxDelay,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Do runs fn up to the configured attempt count. Delay before attempt n is
// baseDelay × 2^(n-1), capped at maxDelay. Each attempt races against the
// per-attempt timeout through its context. Context cancellation and errors
// wrapped with Permanent stop the loop immediately.
func (c *Controller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := c.baseDelay
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
	}

	observability.RecordRetryExhausted(op)
	return &ExhaustedError{Op: op, Attempts: c.maxAttempts, Last: lastErr}
}
