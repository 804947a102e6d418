package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestReplayGuard_MarkAndCheck(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	g := NewReplayGuard(rdb, time.Hour)

	seen, err := g.IsSuperseded(ctx, "rt1")
	if err != nil || seen {
		t.Fatalf("expected unseen token, got %v %v", seen, err)
	}

	if err := g.MarkSuperseded(ctx, "rt1", "user-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = g.IsSuperseded(ctx, "rt1")
	if err != nil || !seen {
		t.Fatalf("expected superseded token, got %v %v", seen, err)
	}
	if seen, _ := g.IsSuperseded(ctx, "rt2"); seen {
		t.Fatalf("unrelated token must not be flagged")
	}
}

func TestReplayGuard_Expires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	g := NewReplayGuard(rdb, time.Minute)

	_ = g.MarkSuperseded(ctx, "rt1", "user-1")
	mr.FastForward(2 * time.Minute)

	if seen, _ := g.IsSuperseded(ctx, "rt1"); seen {
		t.Fatalf("expected entry to expire with the ttl")
	}
}

func TestReplayGuard_StoresHashNotToken(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	g := NewReplayGuard(rdb, time.Hour)

	_ = g.MarkSuperseded(ctx, "secret-token", "user-1")

	for _, k := range mr.Keys() {
		if strings.Contains(k, "secret-token") {
			t.Fatalf("raw token leaked into key %q", k)
		}
		if !strings.HasPrefix(k, "refresh:superseded:") {
			t.Fatalf("unexpected key %q", k)
		}
		if v, _ := mr.Get(k); v != "user-1" {
			t.Fatalf("expected user id value, got %q", v)
		}
	}
}

func TestReplayGuard_ServerDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	g := NewReplayGuard(rdb, time.Hour)
	mr.Close()

	if _, err := g.IsSuperseded(context.Background(), "rt1"); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}
