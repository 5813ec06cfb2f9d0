// Package idempotency provides keyed at-most-once execution. The guard is
// the single synchronization point for side-effecting submissions: the
// first caller under a key executes, every concurrent or later caller with
// the same key observes the first execution's result instead of
// re-executing.
package idempotency

import "context"

// Guard executes fn at most once per (scope, key) and caches the result.
//
// Do returns the execution's result bytes and whether it was replayed from
// cache. A failed execution is NOT cached: its error propagates to callers
// already waiting on the key, and a later retry under the same key
// executes again.
type Guard interface {
	Do(ctx context.Context, scope, key string, fn func(context.Context) ([]byte, error)) ([]byte, bool, error)
}

func cacheKey(scope, key string) string {
	return scope + ":" + key
}
