package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisRateLimitRepository_Allow(t *testing.T) {
	client := setupMiniredis(t)
	repo := NewRedisRateLimitRepository(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.Allow(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be within budget", i+1)
	}

	allowed, err := repo.Allow(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request must exceed the budget")

	// Budgets are per key.
	allowed, err = repo.Allow(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimitRepository_WindowReset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisRateLimitRepository(client)
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, err = repo.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "budget must reset after the window expires")
}

func TestRedisRateLimitRepository_NilClient(t *testing.T) {
	repo := NewRedisRateLimitRepository(nil)
	_, err := repo.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

func TestMemoryRateLimitRepository_Allow(t *testing.T) {
	repo := NewMemoryRateLimitRepository()
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < 10; i++ {
		allowed, err := repo.Allow(ctx, "k", 5, time.Minute)
		require.NoError(t, err)
		if allowed {
			allowedCount++
		}
	}

	// Token bucket admits the burst, then throttles.
	assert.Equal(t, 5, allowedCount)
}

func TestMemoryRateLimitRepository_PerKey(t *testing.T) {
	repo := NewMemoryRateLimitRepository()
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = repo.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

type failingRateLimitRepository struct {
	calls int
}

func (f *failingRateLimitRepository) Allow(context.Context, string, int, time.Duration) (bool, error) {
	f.calls++
	return false, errors.New("connection refused")
}

func TestFailoverRateLimitRepository(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingRateLimitRepository{}
	fallback := NewMemoryRateLimitRepository()
	repo := NewFailoverRateLimitRepository(primary, fallback, &logger)
	ctx := context.Background()

	// First call hits the failing primary and falls back.
	allowed, err := repo.Allow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, primary.calls)

	// While marked down, the primary is not retried before the cooldown.
	_, err = repo.Allow(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
}

func TestFailoverRateLimitRepository_HealthyPrimary(t *testing.T) {
	logger := zerolog.Nop()
	client := setupMiniredis(t)
	primary := NewRedisRateLimitRepository(client)
	fallback := NewMemoryRateLimitRepository()
	repo := NewFailoverRateLimitRepository(primary, fallback, &logger)
	ctx := context.Background()

	allowed, err := repo.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}
