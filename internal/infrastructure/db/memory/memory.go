// Package memory implements in-memory user, session and audit storage for
// development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
)

// DB is a mutex-guarded user store. Every method completes under a single
// lock, so conditional session updates are atomic.
type DB struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	byEmail map[string]string
	events  []domain.AuthEvent
}

func New() *DB {
	return &DB{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

var (
	_ ports.UserRepository  = (*DB)(nil)
	_ ports.SessionStore    = (*DB)(nil)
	_ ports.AuditRepository = (*DB)(nil)
)

// --- UserRepository ---

func (db *DB) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.byEmail[user.Email]; exists {
		return nil, domain.ErrEmailExists
	}

	stored := cloneUser(user)
	stored.ID = uuid.NewString()
	stored.Session = nil
	db.users[stored.ID] = stored
	db.byEmail[stored.Email] = stored.ID
	return cloneUser(stored), nil
}

func (db *DB) FindByID(_ context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (db *DB) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(db.users[id]), nil
}

// Count returns the number of stored users.
func (db *DB) Count() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users)
}

// --- SessionStore ---

func (db *DB) ReplaceSession(_ context.Context, userID string, session domain.RefreshSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Session = &session
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (db *DB) RotateSession(_ context.Context, userID, oldToken string, next domain.RefreshSession, now time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok || u.Session == nil || u.Session.Token != oldToken || !u.Session.ExpiresAt.After(now) {
		return domain.ErrSessionConflict
	}
	u.Session = &next
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (db *DB) RevokeSession(_ context.Context, token string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if token == "" {
		return "", domain.ErrUserNotFound
	}
	for id, u := range db.users {
		if u.Session != nil && u.Session.Token == token {
			u.Session = nil
			u.UpdatedAt = time.Now().UTC()
			return id, nil
		}
	}
	return "", domain.ErrUserNotFound
}

func (db *DB) ClearSession(_ context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Session = nil
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- AuditRepository ---

func (db *DB) InsertEvent(_ context.Context, event *domain.AuthEvent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.events = append(db.events, *event)
	return nil
}

// Events returns a copy of the recorded audit events.
func (db *DB) Events() []domain.AuthEvent {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.AuthEvent, len(db.events))
	copy(out, db.events)
	return out
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	if u.Session != nil {
		s := *u.Session
		clone.Session = &s
	}
	return &clone
}
