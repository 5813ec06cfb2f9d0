package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// pendingMarker occupies a key while the winning caller executes. The NUL
// prefix cannot collide with a cached result (results are JSON).
const pendingMarker = "\x00pending"

// RedisGuard is a Guard shared across processes. The winner claims the key
// with SET NX and publishes the result under the same key; losers poll with
// exponential backoff until the result appears.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisGuard creates a RedisGuard. ttl 0 defaults to 24 hours.
func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

// Do implements Guard.
func (g *RedisGuard) Do(ctx context.Context, scope, key string, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	k := "idem:" + cacheKey(scope, key)

	claimed, err := g.rdb.SetNX(ctx, k, pendingMarker, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency claim: %w", err)
	}

	if claimed {
		result, err := fn(ctx)
		if err != nil {
			// Release the key so a retry can execute.
			g.rdb.Del(context.WithoutCancel(ctx), k)
			return nil, false, err
		}
		if err := g.rdb.Set(context.WithoutCancel(ctx), k, result, g.ttl).Err(); err != nil {
			return nil, false, fmt.Errorf("idempotency publish: %w", err)
		}
		return result, false, nil
	}

	// Another caller holds the key; wait for its outcome.
	var result []byte
	wait := func() error {
		val, err := g.rdb.Get(ctx, k).Bytes()
		if err == redis.Nil {
			// The winner failed and released the key; contend again.
			return backoff.Permanent(errRetryClaim)
		}
		if err != nil {
			return fmt.Errorf("idempotency read: %w", err)
		}
		if string(val) == pendingMarker {
			return errStillPending
		}
		result = val
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	err = backoff.Retry(wait, backoff.WithContext(policy, ctx))
	if err == nil {
		return result, true, nil
	}
	if err == errRetryClaim {
		return g.Do(ctx, scope, key, fn)
	}
	return nil, false, err
}

var (
	errStillPending = fmt.Errorf("idempotency: execution in flight")
	errRetryClaim   = fmt.Errorf("idempotency: key released")
)
