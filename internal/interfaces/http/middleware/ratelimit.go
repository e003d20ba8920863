package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
)

// RateLimiter is an in-memory fixed-window limiter keyed by caller.
// Webhook delivery loops retry aggressively on failure, so the webhook
// routes sit behind one of these to keep a misbehaving platform from
// starving the rest of the API.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	remaining   int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.evictLoop()
	return rl
}

// evictLoop drops buckets that have sat idle past their window so the map
// does not grow with every IP that ever hit the service.
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if now.Sub(b.windowStart) > rl.window*2 {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a request under key fits in the current window
// and consumes a slot if it does.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{remaining: rl.limit - 1, windowStart: now}
		return true
	}

	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns how many requests key has left in the current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || time.Since(b.windowStart) >= rl.window {
		return rl.limit
	}
	return b.remaining
}

// RateLimit limits by client IP, scoped per tenant when the X-Tenant-ID
// header is present so one seller cannot exhaust another's budget.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID := c.GetHeader("X-Tenant-ID"); tenantID != "" {
			key = tenantID + ":" + key
		}

		if !limiter.Allow(key) {
			rejectRateLimited(c, limiter)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

		c.Next()
	}
}

// RateLimitByKey limits using a caller-supplied key extractor, e.g. the
// platform notification sender instead of the client IP.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(keyFunc(c)) {
			rejectRateLimited(c, limiter)
			return
		}
		c.Next()
	}
}

func rejectRateLimited(c *gin.Context, limiter *RateLimiter) {
	c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests,
		dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests, retry later"))
}
