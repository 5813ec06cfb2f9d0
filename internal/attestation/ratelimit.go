package attestation

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// A submission may hit the anchoring ledger, so writes draw more tokens than
// reads. Burst is floored to writeCost so a single submission is always
// admissible.
const (
	writeCost         = 4
	limiterStaleAfter = 10 * time.Minute
	limiterSweepEvery = 5 * time.Minute
)

type clientBucket struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter throttles API traffic with a token bucket per client IP.
// POST requests (submit, revoke, verify) are charged writeCost tokens, GETs
// one. Idle clients are swept in the background until Stop is called.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	rps     rate.Limit
	burst   int
	quit    chan struct{}
}

// NewClientLimiter creates a ClientLimiter allowing rps steady-state tokens
// per second per client with the given burst.
func NewClientLimiter(rps, burst int) *ClientLimiter {
	if burst < writeCost {
		burst = writeCost
	}
	rl := &ClientLimiter{
		clients: make(map[string]*clientBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		quit:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop terminates the idle-client sweep.
func (rl *ClientLimiter) Stop() {
	close(rl.quit)
}

func (rl *ClientLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, cb := range rl.clients {
				if time.Since(cb.lastSeen) > limiterStaleAfter {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.quit:
			return
		}
	}
}

// take charges cost tokens against the client's bucket. On refusal it reports
// how long the client should wait before retrying.
func (rl *ClientLimiter) take(ip string, cost int) (bool, time.Duration) {
	rl.mu.Lock()
	cb, ok := rl.clients[ip]
	if !ok {
		cb = &clientBucket{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = cb
	}
	cb.lastSeen = time.Now()
	rl.mu.Unlock()

	res := cb.bucket.ReserveN(time.Now(), cost)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Middleware returns the Gin handler enforcing the limits. Rejected requests
// get a 429 with a Retry-After hint derived from the bucket's refill rate.
func (rl *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cost := 1
		if c.Request.Method == http.MethodPost {
			cost = writeCost
		}

		ok, retryAfter := rl.take(c.ClientIP(), cost)
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
