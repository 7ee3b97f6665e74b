// Package retry wraps store-facing operations with bounded exponential
// backoff and jitter. Only errors marked transient are retried; validation
// and not-found failures surface immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	fretry "github.com/felixgeelhaar/fortify/retry"
)

// Config holds backoff settings shared by all policies.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig keeps the whole retry budget within an interactive
// session-end flow (a few seconds end to end).
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

// OperationError is surfaced after retries are exhausted, naming the
// operation and carrying the last underlying error.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// transientError marks an error as retryable (store unavailability or a
// losing transaction conflict).
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so policies will retry the operation. Stores call
// this for connection failures and serialization conflicts.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Policy executes operations returning T with retries on transient failure.
type Policy[T any] struct {
	op      string
	retrier fretry.Retry[T]
}

// NewPolicy creates a policy for one named operation.
func NewPolicy[T any](op string, cfg Config) *Policy[T] {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	return &Policy[T]{
		op: op,
		retrier: fretry.New[T](fretry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: fretry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   IsTransient,
		}),
	}
}

// Do runs the operation, re-running it in full on transient failure. The
// operation must be safe to replay (read-compute-write, not just the write).
func (p *Policy[T]) Do(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := p.retrier.Do(ctx, op)
	if err != nil && IsTransient(err) {
		return result, &OperationError{Op: p.op, Err: errors.Unwrap(lastTransient(err))}
	}
	return result, err
}

func lastTransient(err error) error {
	var te *transientError
	if errors.As(err, &te) {
		return te
	}
	return err
}
