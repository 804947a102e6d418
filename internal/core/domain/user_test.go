package domain

import (
	"errors"
	"testing"
	"time"
)

func TestUser_SessionState(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		session *RefreshSession
		want    SessionState
	}{
		{"none", nil, NoSession},
		{"active", &RefreshSession{Token: "rt", ExpiresAt: now.Add(time.Second)}, ActiveSession},
		{"expired", &RefreshSession{Token: "rt", ExpiresAt: now.Add(-time.Second)}, ExpiredSession},
		{"expires exactly now", &RefreshSession{Token: "rt", ExpiresAt: now}, ExpiredSession},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{Session: tc.session}
			if got := u.SessionState(now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("find user", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "find user" {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if NewStorageError("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestAuthEvent_ShardKey(t *testing.T) {
	if k := (AuthEvent{UserID: "u1", Email: "a@x.com"}).ShardKey(); k != "u1" {
		t.Fatalf("expected user id, got %s", k)
	}
	if k := (AuthEvent{Email: "a@x.com"}).ShardKey(); k != "a@x.com" {
		t.Fatalf("expected email, got %s", k)
	}
}
