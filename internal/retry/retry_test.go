package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func always(error) bool { return true }

func TestWithBackoffStopsOnSuccess(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), Policy{MaxAttempts: 5, BaseBackoff: time.Millisecond}, always, func(int) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoffIsBounded(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), Policy{MaxAttempts: 4, BaseBackoff: time.Millisecond}, always, func(int) error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 4, calls)
}

func TestWithBackoffDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("bad input")
	calls := 0
	err := WithBackoff(context.Background(), Policy{MaxAttempts: 4, BaseBackoff: time.Millisecond},
		func(err error) bool { return errors.Is(err, errBusy) },
		func(int) error {
			calls++
			return permanent
		})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, Policy{MaxAttempts: 3, BaseBackoff: time.Hour}, always, func(int) error {
		return errBusy
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffIsCapped(t *testing.T) {
	p := Policy{BaseBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}

	assert.Equal(t, 10*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 40*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(70))
}
