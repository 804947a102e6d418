// Package token issues and validates the credentials handed to API clients:
// short-lived HS256 access tokens carrying identity and role claims, and
// opaque random refresh tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	minSecretLength   = 32
	refreshTokenBytes = 32
)

var (
	ErrMisconfigured = errors.New("token config invalid")
	ErrInvalid       = errors.New("invalid token")
)

// Config holds the signing and validation settings.
type Config struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

// Identity is the subject an access token is issued for.
type Identity struct {
	UserID   string
	Role     string
	Username string
	Email    string
}

// Claims are the access-token claims. Subject holds the user id.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates tokens. It is safe for concurrent use.
type Manager struct {
	cfg Config
	now func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrMisconfigured, minSecretLength)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("%w: issuer and audience are required", ErrMisconfigured)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access TTL must be positive", ErrMisconfigured)
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of m that reads the current time from now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	clone := *m
	clone.now = now
	return &clone
}

// IssueAccessToken signs an access token for id and returns it with its expiry.
func (m *Manager) IssueAccessToken(id Identity) (string, time.Time, error) {
	if id.UserID == "" {
		return "", time.Time{}, errors.New("issue access token: empty subject")
	}

	now := m.now()
	expiresAt := now.Add(m.cfg.AccessTTL)
	claims := Claims{
		Role:  id.Role,
		Name:  id.Username,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken returns 256 bits of randomness, base64url encoded. The
// token carries no claims; it is matched by exact value.
func (m *Manager) IssueRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateAccessToken fully validates raw: signature, algorithm, issuer,
// audience and expiry. Use it for authorization decisions.
func (m *Manager) ValidateAccessToken(raw string) (*Claims, error) {
	return m.parse(raw,
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
}

// ExtractClaimsIgnoringExpiry validates signature, algorithm, issuer and
// audience of raw but not its time-based claims, so an expired access token
// is still accepted. Only the refresh flow may use it.
func (m *Manager) ExtractClaimsIgnoringExpiry(raw string) (*Claims, error) {
	claims, err := m.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != m.cfg.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalid, claims.Issuer)
	}
	if !slices.Contains(claims.Audience, m.cfg.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}
	return claims, nil
}

func (m *Manager) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	tkn, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return claims, nil
}
