package repository

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryRateLimitRepository approximates the fixed-window budget with a
// token bucket per key. Process-local; used standalone in tests and as
// the fallback when redis is down.
type MemoryRateLimitRepository struct {
	limiters sync.Map
}

func NewMemoryRateLimitRepository() *MemoryRateLimitRepository {
	return &MemoryRateLimitRepository{}
}

func (m *MemoryRateLimitRepository) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	lim := m.getLimiter(key, limit, window)
	return lim.Allow(), nil
}

func (m *MemoryRateLimitRepository) getLimiter(key string, limit int, window time.Duration) *rate.Limiter {
	if v, ok := m.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	lim := rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)
	actual, loaded := m.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
