// Package retry implements a bounded retry policy: a failed operation is
// retried at most MaxRetries times, and only when its error matches a
// trigger. A preparation hook runs before each retry.
package retry

import (
	"context"
	"fmt"
)

// Policy describes when and how often an operation is retried. The zero
// value never retries.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// Retryable reports whether err should trigger a retry. Nil means never.
	Retryable func(err error) bool
	// Prepare runs before each retry, e.g. to refresh credentials. A Prepare
	// failure ends the operation with a *PrepareError.
	Prepare func(ctx context.Context, cause error) error
}

// ExhaustedError is returned when every allowed attempt failed with a
// retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// PrepareError is returned when the preparation hook fails. Cause is the
// error that triggered the retry.
type PrepareError struct {
	Cause error
	Err   error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("preparing retry after %v: %v", e.Cause, e.Err)
}

func (e *PrepareError) Unwrap() error {
	return e.Err
}

// Do runs op under the policy. Non-retryable errors are returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := 0
	for {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempts > p.MaxRetries {
			if p.MaxRetries == 0 {
				return err
			}
			return &ExhaustedError{Attempts: attempts, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p.Prepare != nil {
			if prepErr := p.Prepare(ctx, err); prepErr != nil {
				return &PrepareError{Cause: err, Err: prepErr}
			}
		}
	}
}
