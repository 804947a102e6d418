package ports

import (
	"context"
	"time"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
)

// UserRepository defines read/insert access to user records.
// Lookups return domain.ErrUserNotFound when no row matches.
type UserRepository interface {
	// Create inserts a user without a session. Returns domain.ErrEmailExists
	// when the email is already registered.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// SessionStore reads and writes the refresh-token pair stored on the user
// record. Every method writes token and expiry together.
type SessionStore interface {
	// ReplaceSession unconditionally overwrites the user's session.
	// Returns domain.ErrUserNotFound for an unknown user.
	ReplaceSession(ctx context.Context, userID string, session domain.RefreshSession) error

	// RotateSession replaces the session only while the user still holds
	// oldToken with an expiry after now, as a single atomic update.
	// Returns domain.ErrSessionConflict when that condition does not hold.
	RotateSession(ctx context.Context, userID, oldToken string, next domain.RefreshSession, now time.Time) error

	// RevokeSession clears the session of whichever user holds token and
	// returns that user's id. Returns domain.ErrUserNotFound when none does.
	RevokeSession(ctx context.Context, token string) (string, error)

	// ClearSession clears the user's session regardless of its value.
	// Returns domain.ErrUserNotFound for an unknown user.
	ClearSession(ctx context.Context, userID string) error
}

// AuditRepository persists auth events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}
