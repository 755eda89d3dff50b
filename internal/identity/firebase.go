package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase Admin SDK from a service account
// file or, when none is given, application default credentials.
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	return app, nil
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, token string) (string, time.Time, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", time.Time{}, &domain.Error{Kind: domain.KindUnauthorized, Code: domain.CodeInvalidToken, Message: "invalid or expired token", Err: err}
	}
	if strings.TrimSpace(tok.UID) == "" {
		return "", time.Time{}, domain.ErrInvalidToken
	}
	var expires time.Time
	if tok.Expires > 0 {
		expires = time.Unix(tok.Expires, 0)
	}
	return tok.UID, expires, nil
}

// StaticVerifier maps fixed tokens to uids. It backs local development and
// tests where no identity provider is reachable.
type StaticVerifier struct {
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticVerifier{tokens: copied}
}

func (v *StaticVerifier) VerifyToken(_ context.Context, token string) (string, time.Time, error) {
	uid, ok := v.tokens[token]
	if !ok || uid == "" {
		return "", time.Time{}, domain.ErrInvalidToken
	}
	return uid, time.Time{}, nil
}
