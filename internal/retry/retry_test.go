package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), 3, 10*time.Millisecond, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessOnRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_AllAttemptsExhausted(t *testing.T) {
	var calls int
	sentinel := errors.New("always fails")
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsRetry(t *testing.T) {
	var calls int
	sentinel := errors.New("artifact not found")
	err := Do(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, 10, 100*time.Millisecond, func() error {
		calls.Add(1)
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls.Load(), int32(3))
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	var calls int
	require.NoError(t, Do(context.Background(), 0, time.Millisecond, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestPolicy_MaxDelayCapsBackoff(t *testing.T) {
	p := Policy{Attempts: 4, BaseDelay: 20 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	start := time.Now()
	var calls int
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	// three sleeps of at most 25ms each; uncapped would be at least 105ms
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPermanent_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	assert.ErrorIs(t, Permanent(inner), inner)
}
