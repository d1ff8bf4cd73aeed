package repository

import (
	"context"
	"sync/atomic"
	"time"

	"bookmyfaculty/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverRateLimitRepository prefers the shared redis counter and drops
// to the in-memory limiter when redis fails, probing the primary again
// after a cooldown. Rate limiting degrades to per-instance budgets during
// an outage; it never takes the API down with redis.
type FailoverRateLimitRepository struct {
	primary  domain.RateLimitRepository
	fallback domain.RateLimitRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool
	downAt   atomic.Int64
}

const failoverRecoveryInterval = time.Minute

func NewFailoverRateLimitRepository(primary, fallback domain.RateLimitRepository, logger *zerolog.Logger) *FailoverRateLimitRepository {
	return &FailoverRateLimitRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverRateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary rate limit repository failed, falling back to memory")
		r.markDown()
	} else if r.shouldProbe() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.markDown()
	}

	return r.fallback.Allow(ctx, key, limit, window)
}

func (r *FailoverRateLimitRepository) markDown() {
	r.isDown.Store(true)
	r.downAt.Store(time.Now().UnixNano())
}

func (r *FailoverRateLimitRepository) shouldProbe() bool {
	return time.Since(time.Unix(0, r.downAt.Load())) > failoverRecoveryInterval
}
