package dialer

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dialer-platform/pkg/utils"
)

// Limiter caps concurrent placements per agent across all nodes.
type Limiter interface {
	Acquire(ctx context.Context, agentID string) (bool, error)
	Release(ctx context.Context, agentID string) error
}

// RedisLimiter enforces the cap with an atomic Redis counter. The TTL frees
// leaked slots if a node dies mid-call.
type RedisLimiter struct {
	RDB   *redis.Client
	Limit int
	TTL   time.Duration
}

func (l RedisLimiter) Acquire(ctx context.Context, agentID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.RDB, capKey(agentID), l.Limit, l.TTL)
}

func (l RedisLimiter) Release(ctx context.Context, agentID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.RDB, capKey(agentID))
}

func capKey(agentID string) string { return "dialer:cap:agent:" + agentID }

// NopLimiter never refuses; used when Redis is not configured.
type NopLimiter struct{}

func (NopLimiter) Acquire(context.Context, string) (bool, error) { return true, nil }
func (NopLimiter) Release(context.Context, string) error         { return nil }
