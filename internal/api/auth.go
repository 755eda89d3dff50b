package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/identity"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	clientKeyUnknown    = "unknown"
)

// clientKeys resolves the app key sent in front of the bearer token.
type clientKeys struct {
	cfg    *config.APIConfig
	byKey  map[string]config.APIClientKey
	header string
}

func newClientKeys(cfg *config.APIConfig) clientKeys {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	header := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if header == "" {
		header = apiKeyHeaderDefault
	}
	return clientKeys{cfg: cfg, byKey: m, header: header}
}

// lookup returns the client for apiKey, or false when keys are enforced and
// the key is unknown.
func (c clientKeys) lookup(apiKey string) (config.APIClientKey, bool) {
	if !c.cfg.Auth.Enabled {
		return config.APIClientKey{Key: apiKey}, true
	}
	if apiKey == "" {
		return config.APIClientKey{}, false
	}
	client, ok := c.byKey[apiKey]
	return client, ok
}

type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    clientKeys
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newClientKeys(cfg),
		limiter: newRateLimiter(cfg),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.checkAuth(ctx); err != nil {
			return nil, err
		}
		if err := a.checkRateLimit(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context) error {
	if !a.cfg.Auth.Enabled {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	if _, ok := a.keys.lookup(first(md.Get(a.keys.header))); !ok {
		return status.Error(codes.Unauthenticated, "invalid api key")
	}
	return nil
}

func (a *AuthInterceptor) checkRateLimit(ctx context.Context) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	if !a.limiter.allow(a.clientKey(ctx)) {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.header)); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return remoteHost(p.Addr.String())
	}
	return clientKeyUnknown
}

// HTTPAuth applies the same api key and rate limit rules to HTTP requests.
type HTTPAuth struct {
	cfg     *config.APIConfig
	keys    clientKeys
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     &cfg,
		keys:    newClientKeys(&cfg),
		limiter: newRateLimiter(&cfg),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimSpace(r.Header.Get(a.keys.header))
		if _, ok := a.keys.lookup(apiKey); !ok {
			writeJSON(w, http.StatusUnauthorized, Result{
				Error: "invalid api key",
				Kind:  domain.KindUnauthorized,
				Code:  "invalid_api_key",
			})
			return
		}
		if !a.allow(apiKey, r) {
			writeJSON(w, http.StatusTooManyRequests, Result{
				Error: "rate limit exceeded",
				Kind:  domain.KindConflict,
				Code:  domain.CodeRateLimited,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) allow(apiKey string, r *http.Request) bool {
	if a.cfg.RateLimit.RPS <= 0 {
		return true
	}
	key := apiKey
	if key == "" {
		key = remoteHost(r.RemoteAddr)
	}
	return a.limiter.allow(key)
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if addr == "" {
		return clientKeyUnknown
	}
	return addr
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// bearerFromMetadata reads the "authorization" metadata entry.
func bearerFromMetadata(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	return identity.BearerToken(first(md.Get("authorization")))
}
