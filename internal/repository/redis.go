package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	identityPrefix  = "identity:"
	rateLimitPrefix = "rate_limit:"
)

var errNilClient = errors.New("redis client is nil")

// RedisSessionRepository caches verified token identities and keeps
// fixed-window rate limit counters in Redis.
type RedisSessionRepository struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

// GetIdentity returns the cached uid for key, or "" when nothing is cached.
func (r *RedisSessionRepository) GetIdentity(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", errNilClient
	}
	uid, err := r.client.Get(ctx, identityPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get identity: %w", err)
	}
	return uid, nil
}

func (r *RedisSessionRepository) SetIdentity(ctx context.Context, key, uid string, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Set(ctx, identityPrefix+key, uid, ttl).Err(); err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	return nil
}

// rateLimitScript increments the window counter and starts the window on
// the first hit, atomically.
var rateLimitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// CheckRateLimit counts a hit for key and reports whether it is still within
// limit for the current window.
func (r *RedisSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	count, err := rateLimitScript.Run(ctx, r.client, []string{rateLimitPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return count <= int64(limit), nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
