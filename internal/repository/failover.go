package repository

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSubmissionLimiter uses primary until it fails, then fallback.
// Primary is retried once recoveryInterval has passed since the failure.
type FailoverSubmissionLimiter struct {
	primary  domain.SubmissionLimiter
	fallback domain.SubmissionLimiter
	logger   *zerolog.Logger

	mu       sync.Mutex
	isDown   bool
	downedAt time.Time
	now      func() time.Time
}

var _ domain.SubmissionLimiter = (*FailoverSubmissionLimiter)(nil)

func NewFailoverSubmissionLimiter(primary, fallback domain.SubmissionLimiter, logger *zerolog.Logger) *FailoverSubmissionLimiter {
	return &FailoverSubmissionLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverSubmissionLimiter) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.isDown || r.now().Sub(r.downedAt) > recoveryInterval
}

func (r *FailoverSubmissionLimiter) markDown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isDown = true
	r.downedAt = r.now()
}

func (r *FailoverSubmissionLimiter) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDown {
		r.logger.Info().Msg("primary submission limiter recovered")
	}
	r.isDown = false
}

func (r *FailoverSubmissionLimiter) Allow(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.Allow(ctx, clientID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary submission limiter failed, falling back to memory")
		r.markDown()
	}
	return r.fallback.Allow(ctx, clientID, limit, window)
}
