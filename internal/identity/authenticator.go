// Package identity turns a bearer token into an authenticated Actor: the
// token is verified with the identity provider, then the role and any
// technician profile are read from the profile store.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
)

type Authenticator struct {
	verifier      domain.TokenVerifier
	sessions      domain.SessionRepository
	profiles      domain.ProfileStore
	cacheTTL      time.Duration
	autoProvision bool
	logger        *zerolog.Logger
	now           func() time.Time
}

type Option func(*Authenticator)

// WithSessionCache caches verified uids for ttl, keyed by a token hash.
func WithSessionCache(sessions domain.SessionRepository, ttl time.Duration) Option {
	return func(a *Authenticator) {
		a.sessions = sessions
		a.cacheTTL = ttl
	}
}

// WithAutoProvision creates a customer profile for verified users that have
// none yet.
func WithAutoProvision() Option {
	return func(a *Authenticator) {
		a.autoProvision = true
	}
}

func NewAuthenticator(verifier domain.TokenVerifier, profiles domain.ProfileStore, logger *zerolog.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
	if a.logger == nil {
		nop := zerolog.Nop()
		a.logger = &nop
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate verifies token and loads the caller's role.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (models.Actor, error) {
	if token == "" {
		return models.Actor{}, domain.ErrInvalidToken
	}

	uid, err := a.resolveUID(ctx, token)
	if err != nil {
		return models.Actor{}, err
	}

	user, err := a.profiles.GetUser(ctx, uid)
	if errors.Is(err, domain.ErrRecordNotFound) {
		if !a.autoProvision {
			return models.Actor{}, domain.Unauthorized("no profile for this account")
		}
		user = &models.User{ID: uid, Role: models.RoleCustomer}
		if err := a.profiles.UpsertUser(ctx, user); err != nil {
			return models.Actor{}, domain.Upstream("provision profile", err)
		}
		a.logger.Info().Str("user_id", uid).Msg("Provisioned customer profile")
	} else if err != nil {
		return models.Actor{}, domain.Upstream("load profile", err)
	}

	actor := models.Actor{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Phone:  user.Phone,
	}

	tech, err := a.profiles.GetTechnicianByUserID(ctx, uid)
	switch {
	case err == nil:
		actor.Technician = tech
	case errors.Is(err, domain.ErrRecordNotFound):
	default:
		return models.Actor{}, domain.Upstream("load technician profile", err)
	}

	return actor, nil
}

func (a *Authenticator) resolveUID(ctx context.Context, token string) (string, error) {
	key := tokenKey(token)
	if a.sessions != nil {
		uid, err := a.sessions.GetIdentity(ctx, key)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Identity cache lookup failed")
		} else if uid != "" {
			return uid, nil
		}
	}

	uid, expires, err := a.verifier.VerifyToken(ctx, token)
	if err != nil {
		return "", err
	}

	if ttl := a.cacheTTLFor(expires); a.sessions != nil && ttl > 0 {
		if err := a.sessions.SetIdentity(ctx, key, uid, ttl); err != nil {
			a.logger.Warn().Err(err).Msg("Identity cache write failed")
		}
	}
	return uid, nil
}

// cacheTTLFor caps the configured cache TTL at the token's own expiry so a
// cached uid never outlives the token it was verified from.
func (a *Authenticator) cacheTTLFor(expires time.Time) time.Duration {
	ttl := a.cacheTTL
	if expires.IsZero() {
		return ttl
	}
	if left := expires.Sub(a.now()); left < ttl {
		ttl = left
	}
	return ttl
}
