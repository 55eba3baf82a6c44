package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(context.Context) error {
	return NewTransientError(errors.New("unavailable"), 503)
}

func succeeding(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("telegram", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, b.Call(ctx, failing))
	}
	assert.Equal(t, Open, b.State())

	called := false
	err := b.Call(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("telegram", 1, 10*time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.Error(t, b.Call(ctx, failing))
	assert.Equal(t, Open, b.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Call(ctx, succeeding))
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("telegram", 2, 10*time.Second)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	require.Error(t, b.Call(ctx, failing))
	require.Error(t, b.Call(ctx, failing))
	now = now.Add(10 * time.Second)
	assert.Equal(t, HalfOpen, b.State())

	require.Error(t, b.Call(ctx, failing))
	assert.Equal(t, Open, b.State())
}

func TestBreaker_NonTransientDoesNotTrip(t *testing.T) {
	b := NewBreaker("telegram", 1, time.Minute)
	err := b.Call(context.Background(), func(context.Context) error { return errors.New("chat not found") })
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("x", 0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
