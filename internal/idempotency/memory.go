package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is an in-process Guard. The first caller per key installs an
// entry and runs fn; concurrent callers block on the entry's done channel
// and read the cached outcome. Entries expire after the TTL and are swept
// every few minutes.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	ttl     time.Duration
	quit    chan struct{}
}

type memEntry struct {
	done      chan struct{}
	result    []byte
	err       error
	expiresAt time.Time
}

// NewMemoryGuard creates a MemoryGuard. ttl 0 defaults to 24 hours.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return newMemoryGuard(ttl, 5*time.Minute)
}

func newMemoryGuard(ttl, sweepEvery time.Duration) *MemoryGuard {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	g := &MemoryGuard{
		entries: make(map[string]*memEntry),
		ttl:     ttl,
		quit:    make(chan struct{}),
	}
	go g.sweep(sweepEvery)
	return g
}

// Stop terminates the background sweep. Cached entries stay readable; they
// are just no longer evicted.
func (g *MemoryGuard) Stop() {
	close(g.quit)
}

func (g *MemoryGuard) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			g.mu.Lock()
			for k, e := range g.entries {
				select {
				case <-e.done:
					if now.After(e.expiresAt) {
						delete(g.entries, k)
					}
				default:
					// Still executing; never evict an in-flight entry.
				}
			}
			g.mu.Unlock()
		case <-g.quit:
			return
		}
	}
}

// Do implements Guard.
func (g *MemoryGuard) Do(ctx context.Context, scope, key string, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	k := cacheKey(scope, key)

	g.mu.Lock()
	if e, ok := g.entries[k]; ok && !expired(e) {
		g.mu.Unlock()
		select {
		case <-e.done:
			return e.result, e.err == nil, e.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	e := &memEntry{done: make(chan struct{})}
	g.entries[k] = e
	g.mu.Unlock()

	e.result, e.err = fn(ctx)
	e.expiresAt = time.Now().Add(g.ttl)
	if e.err != nil {
		// Failed executions are not cached; a retry executes again.
		g.mu.Lock()
		delete(g.entries, k)
		g.mu.Unlock()
	}
	close(e.done)

	return e.result, false, e.err
}

func expired(e *memEntry) bool {
	select {
	case <-e.done:
		return time.Now().After(e.expiresAt)
	default:
		return false
	}
}
