package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.SetIdentity(ctx, "hash-1", "uid-1", time.Minute))
	uid, err := repo.GetIdentity(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)

	now = now.Add(2 * time.Minute)
	uid, err = repo.GetIdentity(ctx, "hash-1")
	require.NoError(t, err)
	assert.Empty(t, uid)

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.False(t, allowed)

	now = now.Add(61 * time.Second)
	allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.True(t, allowed)
}
