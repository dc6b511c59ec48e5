package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnauthorized = errors.New("401 unauthorized")

func isUnauthorized(err error) bool { return errors.Is(err, errUnauthorized) }

func TestPolicy_SucceedsFirstTry(t *testing.T) {
	calls, prepares := 0, 0
	p := Policy{
		MaxRetries: 1,
		Retryable:  isUnauthorized,
		Prepare:    func(context.Context, error) error { prepares++; return nil },
	}

	err := p.Do(context.Background(), func(context.Context) error { calls++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, prepares)
}

func TestPolicy_RetriesOnceAfterPrepare(t *testing.T) {
	calls, prepares := 0, 0
	p := Policy{
		MaxRetries: 1,
		Retryable:  isUnauthorized,
		Prepare:    func(context.Context, error) error { prepares++; return nil },
	}

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errUnauthorized
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, prepares)
}

func TestPolicy_ExhaustsAfterMaxRetries(t *testing.T) {
	calls := 0
	p := Policy{MaxRetries: 1, Retryable: isUnauthorized}

	err := p.Do(context.Background(), func(context.Context) error { calls++; return errUnauthorized })

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, errUnauthorized)
	assert.Equal(t, 2, calls)
}

func TestPolicy_NonRetryableReturnedUnchanged(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := Policy{MaxRetries: 3, Retryable: isUnauthorized}

	err := p.Do(context.Background(), func(context.Context) error { calls++; return boom })
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_PrepareFailureStops(t *testing.T) {
	refreshFailed := errors.New("refresh failed")
	calls := 0
	p := Policy{
		MaxRetries: 1,
		Retryable:  isUnauthorized,
		Prepare:    func(context.Context, error) error { return refreshFailed },
	}

	err := p.Do(context.Background(), func(context.Context) error { calls++; return errUnauthorized })

	var prepErr *PrepareError
	require.ErrorAs(t, err, &prepErr)
	assert.ErrorIs(t, prepErr.Cause, errUnauthorized)
	assert.ErrorIs(t, err, refreshFailed)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ZeroValueNeverRetries(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(context.Context) error { calls++; return errUnauthorized })
	assert.ErrorIs(t, err, errUnauthorized)
	assert.Equal(t, 1, calls)
}
