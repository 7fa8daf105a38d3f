// Package token encodes and decodes the signed, expiring credentials issued
// by the engine. A token carries the owning subject id and a kind flag:
// refresh=false for short-lived access tokens, refresh=true for the
// longer-lived tokens used solely to mint new pairs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed covers every structural or signature failure: garbage
	// input, truncated tokens, wrong algorithm, bad signature.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired is returned when the token parsed and verified but its
	// exp claim is in the past.
	ErrExpired = errors.New("token expired")
)

// Config carries the signing key and lifetimes. The 61/70 minute defaults
// mirror the deployed service; the near-identical access and refresh
// lifetimes are intentional compatibility, not a recommendation.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Claims is the decoded token payload.
type Claims struct {
	SubjectID string `json:"user_id"`
	Refresh   bool   `json:"refresh"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens with a single HS256 secret. It holds no
// mutable state and is safe for concurrent use.
type Manager struct {
	config Config
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a token for subjectID at the supplied instant. The refresh
// flag selects both the embedded kind claim and the TTL.
func (m *Manager) Issue(subjectID string, refresh bool, now time.Time) (string, error) {
	if subjectID == "" {
		return "", errors.New("token: empty subject id")
	}

	ttl := m.config.AccessTTL
	if refresh {
		ttl = m.config.RefreshTTL
	}

	claims := Claims{
		SubjectID: subjectID,
		Refresh:   refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Decode verifies raw against the signing secret, evaluating time-based
// claims at now. Failures are always ErrMalformed or ErrExpired; decoding
// never panics on attacker-controlled input.
func (m *Manager) Decode(raw string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.SubjectID == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}
