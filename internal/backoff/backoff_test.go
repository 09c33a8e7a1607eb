package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, Policy{MaxRetries: 3, Interval: time.Millisecond}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	t.Parallel()

	attempts := 0
	wantErr := errors.New("persistent")
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		return wantErr
	}, Policy{MaxRetries: 2, Interval: time.Millisecond}, nil)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetriable(t *testing.T) {
	t.Parallel()

	attempts := 0
	fatal := errors.New("fatal")
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		return fatal
	}, Policy{MaxRetries: 5, Interval: time.Millisecond}, func(err error) bool {
		return !errors.Is(err, fatal)
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, func(context.Context) error {
		return errors.New("never retried")
	}, Policy{MaxRetries: 3, Interval: time.Hour}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
