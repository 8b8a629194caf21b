package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, Wait: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &Transient{Err: errors.New("503")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("bad input")
	p := Policy{Attempts: 3, Wait: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return perm
	})

	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	p := Policy{Attempts: 3, Wait: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return &Transient{Err: errors.New("timeout")}
	})

	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Attempts: 3, Wait: time.Minute}

	err := p.Do(ctx, func() error {
		return &Transient{Err: errors.New("timeout")}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableUnwrapsWrappedTransient(t *testing.T) {
	inner := &Transient{Err: errors.New("reset")}
	wrapped := errors.Join(errors.New("outer"), inner)
	assert.True(t, Retryable(wrapped))
	assert.False(t, Retryable(errors.New("plain")))
}
