package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	clock := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	b := New("oracle", 2, time.Minute)
	b.now = func() time.Time { return clock }
	boom := errors.New("boom")
	ctx := context.Background()
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrOpen)

	clock = clock.Add(2 * time.Minute)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	b := New("oracle", 1, time.Second)
	b.now = func() time.Time { return clock }
	b.RecordFailure()
	clock = clock.Add(2 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresCallerCancel(t *testing.T) {
	b := New("oracle", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}
