package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// requestLog assigns each request an ID and logs method, path, status and
// latency on completion.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)

		start := time.Now()
		c.Next()
		log.Printf("api: %s %s -> %d (%s) id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), id)
	}
}

// cors allows cross-origin browser clients. The frontend is served from a
// different origin during development.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, x-api-key, x-session-id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAPIKey rejects requests without a valid x-api-key header. An empty
// allow-list disables the check entirely.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.keys) == 0 {
			c.Next()
			return
		}
		key := c.GetHeader("x-api-key")
		if key == "" || !s.keys[key] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

// rateLimit applies a per-client token bucket on generation routes, keyed by
// API key when present, else client IP.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("x-api-key")
		if key == "" {
			key = c.ClientIP()
		}
		if !s.limits.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// keyedLimiter maintains one token bucket per client key. A zero rate
// disables limiting.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newKeyedLimiter(perSecond float64, burst int) *keyedLimiter {
	return &keyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (k *keyedLimiter) Allow(key string) bool {
	if k.rate <= 0 {
		return true
	}
	k.mu.Lock()
	lim, ok := k.limiters[key]
	if !ok {
		lim = rate.NewLimiter(k.rate, k.burst)
		k.limiters[key] = lim
	}
	k.mu.Unlock()
	return lim.Allow()
}
