package domain

import "time"

// AuthEventType names an auth lifecycle outcome recorded in the audit trail.
type AuthEventType string

const (
	EventRegister      AuthEventType = "register"
	EventLogin         AuthEventType = "login"
	EventLoginFailed   AuthEventType = "login_failed"
	EventRefresh       AuthEventType = "refresh"
	EventRefreshFailed AuthEventType = "refresh_failed"
	EventRefreshReuse  AuthEventType = "refresh_reuse"
	EventRevoke        AuthEventType = "revoke"
	EventLogout        AuthEventType = "logout"
)

// AuthEvent is a single audit record. UserID is empty when the actor could
// not be resolved (for example a failed login with an unknown email).
type AuthEvent struct {
	Type       AuthEventType `json:"type" bson:"type"`
	UserID     string        `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Email      string        `json:"email,omitempty" bson:"email,omitempty"`
	OccurredAt time.Time     `json:"occurred_at" bson:"occurred_at"`
}

// ShardKey returns the value used to keep one actor's events in order.
func (e AuthEvent) ShardKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}
