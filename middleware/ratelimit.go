package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/MouadFiali/gke-cloud-project/apperrors"
)

// RateLimiter keeps one token bucket per caller. Buckets idle for longer
// than the Sweep age are dropped; a dropped caller starts with a full bucket.
type RateLimiter struct {
	clock    clockwork.Clock
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return NewRateLimiterWithClock(r, b, clockwork.NewRealClock())
}

func NewRateLimiterWithClock(r rate.Limit, b int, clock clockwork.Clock) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    b,
	}
}

// PerMinute allows perMinute requests per caller with a burst of half that.
// A non-positive perMinute disables limiting.
func PerMinute(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return NewRateLimiter(rate.Inf, 0)
	}
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}
	return NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if entry, exists := rl.limiters[key]; exists {
		entry.lastSeen = now
		return entry.limiter
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Sweep drops buckets not used within maxAge and returns how many went.
func (rl *RateLimiter) Sweep(maxAge time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.clock.Now().Add(-maxAge)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware limits by user id when AuthMiddleware ran first, else by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, err := GetUserID(c); err == nil {
			key = "user:" + id
		}
		if !rl.GetLimiter(key).Allow() {
			c.AbortWithStatusJSON(apperrors.ErrTooManyRequests.Code, apperrors.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
