package api

import (
	"testing"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerKey(t *testing.T) {
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 2}})

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 10}})
	l.now = func() time.Time { return now }

	l.allow("a")
	l.allow("b")
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL / 2)
	l.allow("b")

	now = now.Add(limiterIdleTTL/2 + limiterSweepInterval)
	l.allow("c")
	// "a" was idle past the ttl, "b" was seen recently
	assert.Equal(t, 2, l.size())
}

func TestRateLimiterDefaultBurst(t *testing.T) {
	l := newRateLimiter(&config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1}})
	assert.Equal(t, 5, l.burst)
}
