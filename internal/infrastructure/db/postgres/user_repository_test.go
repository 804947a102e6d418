package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubQuerier struct {
	execFn     func(sql string, args ...any) (pgconn.CommandTag, error)
	queryRowFn func(sql string, args ...any) pgx.Row
}

func (s *stubQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.execFn(sql, args...)
}

func (s *stubQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return s.queryRowFn(sql, args...)
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{
		queryRowFn: func(string, ...any) pgx.Row {
			return stubRow{scan: func(...any) error { return &pgconn.PgError{Code: "23505"} }}
		},
	})

	_, err := repo.Create(context.Background(), &domain.User{Email: "a@x.com"})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestCreate_AssignsID(t *testing.T) {
	now := time.Now().UTC()
	repo := NewUserRepository(&stubQuerier{
		queryRowFn: func(sql string, args ...any) pgx.Row {
			if _, err := uuid.Parse(args[0].(string)); err != nil {
				t.Fatalf("expected uuid id, got %v", args[0])
			}
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*time.Time) = now
				*dest[1].(*time.Time) = now
				return nil
			}}
		},
	})

	u, err := repo.Create(context.Background(), &domain.User{Username: "alice", Email: "a@x.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == "" || !u.CreatedAt.Equal(now) || u.Session != nil {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{
		queryRowFn: func(string, ...any) pgx.Row {
			return stubRow{scan: func(...any) error { return pgx.ErrNoRows }}
		},
	})

	if _, err := repo.FindByEmail(context.Background(), "ghost@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindByID_MalformedID(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{})
	if _, err := repo.FindByID(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindByEmail_ScansSession(t *testing.T) {
	token := "rt1"
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewUserRepository(&stubQuerier{
		queryRowFn: func(string, ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*string) = uuid.NewString()
				*dest[2].(*string) = "a@x.com"
				*dest[5].(**string) = &token
				*dest[6].(**time.Time) = &exp
				return nil
			}}
		},
	})

	u, err := repo.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Session == nil || u.Session.Token != token || !u.Session.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected session: %+v", u.Session)
	}
}

func TestRotateSession_ZeroRowsIsConflict(t *testing.T) {
	var gotSQL string
	repo := NewUserRepository(&stubQuerier{
		execFn: func(sql string, _ ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	})

	err := repo.RotateSession(context.Background(), uuid.NewString(), "old", domain.RefreshSession{Token: "new", ExpiresAt: time.Now()}, time.Now())
	if !errors.Is(err, domain.ErrSessionConflict) {
		t.Fatalf("expected ErrSessionConflict, got %v", err)
	}
	if !strings.Contains(gotSQL, "refresh_token = $2") || !strings.Contains(gotSQL, "refresh_token_expiry_time > $5") {
		t.Fatalf("rotation must be conditional on token and expiry, got %q", gotSQL)
	}
}

func TestRotateSession_Success(t *testing.T) {
	repo := NewUserRepository(&stubQuerier{
		execFn: func(string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	})

	if err := repo.RotateSession(context.Background(), uuid.NewString(), "old", domain.RefreshSession{Token: "new"}, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevokeSession(t *testing.T) {
	id := uuid.NewString()
	repo := NewUserRepository(&stubQuerier{
		queryRowFn: func(_ string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				if args[0] != "rt1" {
					return pgx.ErrNoRows
				}
				*dest[0].(*string) = id
				return nil
			}}
		},
	})

	got, err := repo.RevokeSession(context.Background(), "rt1")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := repo.RevokeSession(context.Background(), "other"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.RevokeSession(context.Background(), ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for empty token, got %v", err)
	}
}

func TestClearSession_StorageError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := NewUserRepository(&stubQuerier{
		execFn: func(string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, boom
		},
	})

	if err := repo.ClearSession(context.Background(), uuid.NewString()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestAuditRepository_InsertEvent(t *testing.T) {
	var args []any
	repo := NewAuditRepository(&stubQuerier{
		execFn: func(_ string, a ...any) (pgconn.CommandTag, error) {
			args = a
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	})

	err := repo.InsertEvent(context.Background(), &domain.AuthEvent{Type: domain.EventLogin, UserID: "u1", OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[0] != "login" || args[1] != "u1" {
		t.Fatalf("unexpected args: %v", args)
	}
}
