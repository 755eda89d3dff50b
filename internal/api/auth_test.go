package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys:      []config.APIClientKey{{Key: "valid-key", Name: "web"}},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/" + BookingServiceName + "/ListServices"}

	t.Run("Success", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "valid-key"))
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingKey", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "invalid"))
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	_, err = interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// a different client has its own bucket
	other := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key2"))
	_, err = interceptor(other, "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, " req-42 "))
	assert.Equal(t, "req-42", requestIDFromMetadata(ctx))

	generated := requestIDFromMetadata(context.Background())
	assert.Len(t, generated, 36)
}

func TestBearerFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer tok-1"))
	assert.Equal(t, "tok-1", bearerFromMetadata(ctx))

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "tok-1"))
	assert.Empty(t, bearerFromMetadata(ctx))
	assert.Empty(t, bearerFromMetadata(context.Background()))
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "X-API-Key",
			APIKeys:      []config.APIClientKey{{Key: "valid-key", Name: "web"}},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewHTTPAuth(cfg).Wrap(next)

	serve := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(""))
	assert.Equal(t, http.StatusUnauthorized, serve("wrong"))
	assert.Equal(t, http.StatusNoContent, serve("valid-key"))
	assert.Equal(t, http.StatusTooManyRequests, serve("valid-key"))
}

func TestRemoteHost(t *testing.T) {
	assert.Equal(t, "10.0.0.1", remoteHost("10.0.0.1:5555"))
	assert.Equal(t, "pipe", remoteHost("pipe"))
	assert.Equal(t, clientKeyUnknown, remoteHost(""))
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + BookingServiceName + "/ClaimJob"}

	resp, err := interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		panic("nil booking")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err = interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
