package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers refresh tokens that were rotated away so that a
// second presentation can be told apart from a random invalid token.
// Key format: refresh:superseded:<sha256(token)>, value: user id.
type ReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayGuard creates a ReplayGuard. Entries live for ttl, which should be
// the refresh token lifetime; after that the token is expired anyway.
func NewReplayGuard(client *redis.Client, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{client: client, ttl: ttl}
}

// MarkSuperseded records that token was replaced by rotation.
func (g *ReplayGuard) MarkSuperseded(ctx context.Context, token, userID string) error {
	if err := g.client.Set(ctx, key(token), userID, g.ttl).Err(); err != nil {
		return fmt.Errorf("replay mark: %w", err)
	}
	return nil
}

// IsSuperseded reports whether token was previously rotated away.
func (g *ReplayGuard) IsSuperseded(ctx context.Context, token string) (bool, error) {
	n, err := g.client.Exists(ctx, key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("replay check: %w", err)
	}
	return n > 0, nil
}

// Raw tokens never reach Redis.
func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "refresh:superseded:" + hex.EncodeToString(sum[:])
}
