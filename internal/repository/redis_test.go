package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client)
	ctx := context.Background()

	t.Run("SetAndGetIdentity", func(t *testing.T) {
		require.NoError(t, repo.SetIdentity(ctx, "hash-1", "uid-1", time.Minute))

		uid, err := repo.GetIdentity(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", uid)
		assert.True(t, s.Exists("identity:hash-1"))
	})

	t.Run("IdentityExpires", func(t *testing.T) {
		require.NoError(t, repo.SetIdentity(ctx, "hash-2", "uid-2", time.Second))
		s.FastForward(2 * time.Second)

		uid, err := repo.GetIdentity(ctx, "hash-2")
		require.NoError(t, err)
		assert.Empty(t, uid)
	})

	t.Run("Miss", func(t *testing.T) {
		uid, err := repo.GetIdentity(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, uid)
	})

	t.Run("CheckRateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "claim:tech-1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, "claim:tech-1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, s.TTL("rate_limit:claim:tech-1"))

		s.FastForward(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, "claim:tech-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("NilClient", func(t *testing.T) {
		empty := NewRedisSessionRepository(nil)
		_, err := empty.GetIdentity(ctx, "x")
		assert.Error(t, err)
		assert.Error(t, empty.SetIdentity(ctx, "x", "y", time.Second))
		_, err = empty.CheckRateLimit(ctx, "x", 1, time.Second)
		assert.Error(t, err)
	})
}

func TestRedisSessionRepository_ServerDown(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	repo := NewRedisSessionRepository(client)
	_, err = repo.GetIdentity(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, Ping(context.Background(), client))
}
