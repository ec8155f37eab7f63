package groundapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ErrMissingSigningKey is returned when a TokenSource has no key.
var ErrMissingSigningKey = errors.New("upstream signing key not configured")

// TokenConfig holds configuration for service tokens.
type TokenConfig struct {
	// SigningKey is the shared HS256 secret (required).
	SigningKey string

	// Issuer is the iss claim.
	// Default: "groundscanner"
	Issuer string

	// Audience is the aud claim.
	// Default: "groundscanner-backend"
	Audience string

	// TTL is the token lifetime.
	// Default: 5 minutes
	TTL time.Duration

	// RefreshBefore renews a token this long before it expires.
	// Default: 30 seconds
	RefreshBefore time.Duration
}

// TokenSource issues short-lived bearer tokens for upstream calls. Concurrent
// callers during a refresh share one signing.
type TokenSource struct {
	key           []byte
	issuer        string
	audience      string
	ttl           time.Duration
	refreshBefore time.Duration
	now           func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	token   string
	expires time.Time
}

// ServiceClaims are the claims of an upstream service token.
type ServiceClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// NewTokenSource creates a token source.
func NewTokenSource(cfg TokenConfig) *TokenSource {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "groundscanner"
	}
	audience := cfg.Audience
	if audience == "" {
		audience = "groundscanner-backend"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	refreshBefore := cfg.RefreshBefore
	if refreshBefore == 0 {
		refreshBefore = 30 * time.Second
	}
	if refreshBefore >= ttl {
		refreshBefore = ttl / 2
	}

	return &TokenSource{
		key:           []byte(cfg.SigningKey),
		issuer:        issuer,
		audience:      audience,
		ttl:           ttl,
		refreshBefore: refreshBefore,
		now:           time.Now,
	}
}

// Token returns a valid bearer token, signing a new one when the cached one
// is close to expiry.
func (s *TokenSource) Token(_ context.Context) (string, error) {
	if len(s.key) == 0 {
		return "", ErrMissingSigningKey
	}

	s.mu.RLock()
	token, expires := s.token, s.expires
	s.mu.RUnlock()
	if token != "" && s.now().Before(expires.Add(-s.refreshBefore)) {
		return token, nil
	}

	v, err, _ := s.group.Do("token", func() (any, error) {
		return s.refresh()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *TokenSource) refresh() (string, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Scope: "transports:read fares:read",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = signed
	s.expires = expires
	s.mu.Unlock()
	return signed, nil
}

// Verify parses and validates a token signed with the same key.
func (s *TokenSource) Verify(tokenString string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
