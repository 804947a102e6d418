package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
)

func seedUser(t *testing.T, db *DB, email string) *domain.User {
	t.Helper()
	u, err := db.Create(context.Background(), &domain.User{Username: "alice", Email: email, PasswordHash: "h", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return u
}

func TestDB_CreateAndFind(t *testing.T) {
	db := New()
	u := seedUser(t, db, "a@x.com")
	if u.ID == "" {
		t.Fatalf("expected id to be assigned")
	}

	byEmail, err := db.FindByEmail(context.Background(), "a@x.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("FindByEmail: %v %+v", err, byEmail)
	}
	byID, err := db.FindByID(context.Background(), u.ID)
	if err != nil || byID.Email != "a@x.com" {
		t.Fatalf("FindByID: %v %+v", err, byID)
	}

	if _, err := db.FindByEmail(context.Background(), "ghost@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDB_CreateDuplicateEmail(t *testing.T) {
	db := New()
	seedUser(t, db, "a@x.com")

	if _, err := db.Create(context.Background(), &domain.User{Email: "a@x.com"}); !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if db.Count() != 1 {
		t.Fatalf("expected a single user, got %d", db.Count())
	}
}

func TestDB_ReturnedUsersAreCopies(t *testing.T) {
	db := New()
	u := seedUser(t, db, "a@x.com")
	exp := time.Now().Add(time.Hour)
	if err := db.ReplaceSession(context.Background(), u.ID, domain.RefreshSession{Token: "rt1", ExpiresAt: exp}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, _ := db.FindByID(context.Background(), u.ID)
	got.Session.Token = "mutated"

	again, _ := db.FindByID(context.Background(), u.ID)
	if again.Session.Token != "rt1" {
		t.Fatalf("stored session was mutated through a returned copy")
	}
}

func TestDB_RotateSession(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := seedUser(t, db, "a@x.com")
	now := time.Now()

	if err := db.RotateSession(ctx, u.ID, "rt1", domain.RefreshSession{Token: "rt2", ExpiresAt: now.Add(time.Hour)}, now); !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("expected conflict without a session, got %v", err)
	}

	_ = db.ReplaceSession(ctx, u.ID, domain.RefreshSession{Token: "rt1", ExpiresAt: now.Add(time.Hour)})
	if err := db.RotateSession(ctx, u.ID, "rt1", domain.RefreshSession{Token: "rt2", ExpiresAt: now.Add(2 * time.Hour)}, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := db.RotateSession(ctx, u.ID, "rt1", domain.RefreshSession{Token: "rt3", ExpiresAt: now.Add(2 * time.Hour)}, now); !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("expected conflict for superseded token, got %v", err)
	}

	got, _ := db.FindByID(ctx, u.ID)
	if got.Session == nil || got.Session.Token != "rt2" {
		t.Fatalf("expected rt2 to be stored, got %+v", got.Session)
	}
}

func TestDB_RotateSession_Expired(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := seedUser(t, db, "a@x.com")
	now := time.Now()

	_ = db.ReplaceSession(ctx, u.ID, domain.RefreshSession{Token: "rt1", ExpiresAt: now})
	if err := db.RotateSession(ctx, u.ID, "rt1", domain.RefreshSession{Token: "rt2", ExpiresAt: now.Add(time.Hour)}, now); !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("expected conflict for session expiring exactly now, got %v", err)
	}
}

func TestDB_RotateSession_SingleWinner(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := seedUser(t, db, "a@x.com")
	now := time.Now()
	_ = db.ReplaceSession(ctx, u.ID, domain.RefreshSession{Token: "rt1", ExpiresAt: now.Add(time.Hour)})

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := domain.RefreshSession{Token: "next-" + string(rune('a'+i)), ExpiresAt: now.Add(time.Hour)}
			results <- db.RotateSession(ctx, u.ID, "rt1", next, now)
		}(i)
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else if !errors.Is(err, domain.ErrSessionConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func TestDB_RevokeAndClearSession(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := seedUser(t, db, "a@x.com")
	_ = db.ReplaceSession(ctx, u.ID, domain.RefreshSession{Token: "rt1", ExpiresAt: time.Now().Add(time.Hour)})

	if _, err := db.RevokeSession(ctx, ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected empty token to match nothing, got %v", err)
	}
	if _, err := db.RevokeSession(ctx, "unknown"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	id, err := db.RevokeSession(ctx, "rt1")
	if err != nil || id != u.ID {
		t.Fatalf("revoke: %v %s", err, id)
	}
	got, _ := db.FindByID(ctx, u.ID)
	if got.Session != nil {
		t.Fatalf("expected session cleared")
	}

	if err := db.ClearSession(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := db.ClearSession(ctx, u.ID); err != nil {
		t.Fatalf("clear on empty session should succeed: %v", err)
	}
}

func TestDB_Events(t *testing.T) {
	db := New()
	_ = db.InsertEvent(context.Background(), &domain.AuthEvent{Type: domain.EventLogin, UserID: "u1"})

	events := db.Events()
	if len(events) != 1 || events[0].Type != domain.EventLogin {
		t.Fatalf("unexpected events: %+v", events)
	}
}
