package domain

import "time"

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// SessionState is the refresh-session state of a user, derived from User.Session.
type SessionState string

const (
	NoSession      SessionState = "no_session"
	ActiveSession  SessionState = "active"
	ExpiredSession SessionState = "expired"
)

// RefreshSession is the single refresh token a user currently holds.
type RefreshSession struct {
	Token     string
	ExpiresAt time.Time
}

// User models a registered account. Session is nil when the user holds no
// refresh token; token and expiry are always set or cleared together.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         string          `json:"role"`
	Session      *RefreshSession `json:"-"`
	CreatedAt    time.Time       `json:"-"`
	UpdatedAt    time.Time       `json:"-"`
}

// SessionState reports the user's session state at now. A session whose
// expiry equals now is already expired.
func (u *User) SessionState(now time.Time) SessionState {
	switch {
	case u.Session == nil:
		return NoSession
	case u.Session.ExpiresAt.After(now):
		return ActiveSession
	default:
		return ExpiredSession
	}
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
