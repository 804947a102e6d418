package ports

import (
	"context"
	"time"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/token"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer issues signed access tokens and opaque refresh tokens, and
// reads claims back from access tokens presented for refresh.
type TokenIssuer interface {
	IssueAccessToken(id token.Identity) (string, time.Time, error)
	IssueRefreshToken() (string, error)
	ExtractClaimsIgnoringExpiry(accessToken string) (*token.Claims, error)
}

// ReplayGuard remembers refresh tokens that were superseded by rotation.
type ReplayGuard interface {
	MarkSuperseded(ctx context.Context, refreshToken, userID string) error
	IsSuperseded(ctx context.Context, refreshToken string) (bool, error)
}

// AuditRecorder accepts auth events for asynchronous persistence.
type AuditRecorder interface {
	Enqueue(event domain.AuthEvent)
}
