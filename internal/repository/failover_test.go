package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetIdentity(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockRepo) SetIdentity(ctx context.Context, key, uid string, ttl time.Duration) error {
	args := m.Called(ctx, key, uid, ttl)
	return args.Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetIdentity", ctx, "k1").Return("uid-1", nil).Once()

		uid, err := repo.GetIdentity(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", uid)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailsThenFallback", func(t *testing.T) {
		primary.On("SetIdentity", ctx, "k2", "uid-2", time.Minute).Return(errors.New("redis down")).Once()
		fallback.On("SetIdentity", ctx, "k2", "uid-2", time.Minute).Return(nil).Once()

		require.NoError(t, repo.SetIdentity(ctx, "k2", "uid-2", time.Minute))
		assert.True(t, repo.isDown.Load())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "claim:t1", 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "claim:t1", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "claim:t1", 5, time.Minute)
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		repo.mu.Lock()
		repo.lastCheck = time.Now().Add(-2 * recoveryInterval)
		repo.mu.Unlock()

		primary.On("GetIdentity", ctx, "k3").Return("uid-3", nil).Once()

		uid, err := repo.GetIdentity(ctx, "k3")
		require.NoError(t, err)
		assert.Equal(t, "uid-3", uid)
		assert.False(t, repo.isDown.Load())
	})

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
