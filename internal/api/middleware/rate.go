package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig sizes the token buckets
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL is how long a client's bucket survives without requests
	IdleTTL time.Duration
	// Skip lists paths that are never limited
	Skip []string
}

// DefaultRateLimitConfig leaves room for the renderer's autosave bursts
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTTL:           10 * time.Minute,
		Skip:              []string{"/health", "/metrics"},
	}
}

func (cfg RateLimitConfig) bucket() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// buckets holds one limiter per client IP; idle ones are swept lazily
type buckets struct {
	mu    sync.Mutex
	byIP  map[string]*bucket
	cfg   RateLimitConfig
	swept time.Time
	now   func() time.Time
}

func newBuckets(cfg RateLimitConfig, now func() time.Time) *buckets {
	return &buckets{byIP: make(map[string]*bucket), cfg: cfg, now: now}
}

func (b *buckets) get(ip string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if ttl := b.cfg.IdleTTL; ttl > 0 && now.Sub(b.swept) > ttl {
		for key, entry := range b.byIP {
			if now.Sub(entry.seen) > ttl {
				delete(b.byIP, key)
			}
		}
		b.swept = now
	}

	entry := b.byIP[ip]
	if entry == nil {
		entry = &bucket{Limiter: b.cfg.bucket()}
		b.byIP[ip] = entry
	}
	entry.seen = now
	return entry.Limiter
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byIP)
}

// RateLimit limits each client IP to its own bucket
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	b := newBuckets(cfg, time.Now)
	return limit(cfg.Skip, func(c *gin.Context) *rate.Limiter { return b.get(c.ClientIP()) })
}

// GlobalRateLimit shares one bucket between all clients
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	shared := cfg.bucket()
	return limit(cfg.Skip, func(*gin.Context) *rate.Limiter { return shared })
}

func limit(skip []string, pick func(*gin.Context) *rate.Limiter) gin.HandlerFunc {
	exempt := make(map[string]bool, len(skip))
	for _, p := range skip {
		exempt[p] = true
	}
	return func(c *gin.Context) {
		if exempt[c.Request.URL.Path] {
			c.Next()
			return
		}
		r := pick(c).Reserve()
		if delay := r.Delay(); !r.OK() || delay > 0 {
			r.Cancel()
			wait := 1
			if r.OK() {
				wait = max(1, int(math.Ceil(delay.Seconds())))
			}
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
