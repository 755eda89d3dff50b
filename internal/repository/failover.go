package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository uses the primary until it errors, then serves
// from the fallback and retries the primary once per recoveryInterval.
type FailoverSessionRepository struct {
	primary  domain.SessionRepository
	fallback domain.SessionRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverSessionRepository) primaryFailed(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverSessionRepository) primaryRecovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary session repository recovered")
	}
}

func (r *FailoverSessionRepository) GetIdentity(ctx context.Context, key string) (string, error) {
	if r.usePrimary() {
		uid, err := r.primary.GetIdentity(ctx, key)
		if err == nil {
			r.primaryRecovered()
			return uid, nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.GetIdentity(ctx, key)
}

func (r *FailoverSessionRepository) SetIdentity(ctx context.Context, key, uid string, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetIdentity(ctx, key, uid, ttl)
		if err == nil {
			r.primaryRecovered()
			return nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.SetIdentity(ctx, key, uid, ttl)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.primaryRecovered()
			return allowed, nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
