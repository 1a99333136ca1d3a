package apns

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pushrelay/pushrelay/pkg/kv"
)

// TokenSource yields a bearer token for the APNs provider API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

const (
	authTokenKey = "authToken"

	// APNs accepts provider tokens between 20 and 60 minutes old; refresh
	// comfortably inside that window.
	authTokenTTL = 50 * time.Minute
)

// JWTSource signs ES256 provider tokens and caches them in a kv.Store so
// concurrent relay instances share one token per refresh window.
type JWTSource struct {
	keyID  string
	teamID string
	key    *ecdsa.PrivateKey
	store  kv.Store
	log    *slog.Logger
	now    func() time.Time
}

// JWTSourceOption configures a JWTSource.
type JWTSourceOption func(*JWTSource)

// WithTokenCache persists signed tokens in the given store.
func WithTokenCache(store kv.Store) JWTSourceOption {
	return func(s *JWTSource) {
		s.store = store
	}
}

// WithJWTSourceLogger sets the logger for the JWTSource.
func WithJWTSourceLogger(log *slog.Logger) JWTSourceOption {
	return func(s *JWTSource) {
		if log != nil {
			s.log = log
		}
	}
}

// NewJWTSource parses the PEM-encoded .p8 provider key and builds a token
// source for the given key and team ids.
func NewJWTSource(keyID, teamID, authKeyPEM string, opts ...JWTSourceOption) (*JWTSource, error) {
	if keyID == "" || teamID == "" || authKeyPEM == "" {
		return nil, ErrMissingCredentials
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(authKeyPEM))
	if err != nil {
		return nil, errors.Join(ErrInvalidAuthKey, err)
	}

	s := &JWTSource{
		keyID:  keyID,
		teamID: teamID,
		key:    key,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns a cached provider token while one is fresh, signing and
// caching a new one otherwise. Cache failures degrade to signing per call.
func (s *JWTSource) Token(ctx context.Context) (string, error) {
	if s.store != nil {
		if cached, err := s.store.Get(ctx, authTokenKey); err == nil && len(cached) > 0 {
			return string(cached), nil
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.teamID,
		"iat": s.now().Unix(),
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	if s.store != nil {
		if err := s.store.Put(ctx, authTokenKey, []byte(signed), authTokenTTL); err != nil {
			s.log.WarnContext(ctx, "failed to cache apns provider token", "error", err)
		}
	}
	return signed, nil
}
