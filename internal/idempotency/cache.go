// Package idempotency provides a Redis-backed lookaside cache that
// accelerates the idempotency-key lookups the access pipeline already
// enforces at the database (spec §4.1 idempotent short-circuit). Redis
// is an accelerator only: a miss or any Redis
// error always falls through to the database, which remains the
// source of truth — the same "log but don't fail" posture this
// codebase uses for every best-effort cache write.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 10 * time.Minute

// Cache looks up and remembers (orgId, idempotencyKey) -> aggregate id
// mappings in Redis. A nil *Cache or nil client is a valid no-op cache,
// so wiring it in is optional.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewCache builds a Cache over rdb. ttl <= 0 uses defaultTTL.
func NewCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func attemptKey(orgID, idempotencyKey string) string {
	return "idem:attempt:" + orgID + ":" + idempotencyKey
}

func commandKey(orgID, idempotencyKey string) string {
	return "idem:command:" + orgID + ":" + idempotencyKey
}

// GetAttemptID returns the cached attempt id for (orgId,
// idempotencyKey), or ("", false) on a miss or Redis error — the
// caller must fall through to the database lookup.
func (c *Cache) GetAttemptID(ctx context.Context, orgID, idempotencyKey string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	id, err := c.rdb.Get(ctx, attemptKey(orgID, idempotencyKey)).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

// RememberAttempt caches attemptID for (orgId, idempotencyKey).
// Failures are logged, never returned — the row already committed to
// the database is the source of truth regardless of cache outcome.
func (c *Cache) RememberAttempt(ctx context.Context, orgID, idempotencyKey, attemptID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, attemptKey(orgID, idempotencyKey), attemptID, c.ttl).Err(); err != nil {
		c.log.Warn("idempotency cache write failed", zap.String("organization_id", orgID), zap.Error(err))
	}
}

// GetCommandID returns the cached command id for (orgId,
// idempotencyKey), or ("", false) on a miss or Redis error.
func (c *Cache) GetCommandID(ctx context.Context, orgID, idempotencyKey string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	id, err := c.rdb.Get(ctx, commandKey(orgID, idempotencyKey)).Result()
	if err != nil {
		return "", false
	}
	return id, true
}

// RememberCommand caches commandID for (orgId, idempotencyKey).
func (c *Cache) RememberCommand(ctx context.Context, orgID, idempotencyKey, commandID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, commandKey(orgID, idempotencyKey), commandID, c.ttl).Err(); err != nil {
		c.log.Warn("idempotency cache write failed", zap.String("organization_id", orgID), zap.Error(err))
	}
}
