package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimitWindow matches the 15-minute accounting window the limits are
// expressed in.
const rateLimitWindow = 15 * time.Minute

// LimiterSet keeps one token bucket per client key. Buckets refill at
// maxPerWindow tokens per window with a burst of the full window budget.
type LimiterSet struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiterSet(maxPerWindow int) *LimiterSet {
	s := &LimiterSet{
		limiters: map[string]*limiterEntry{},
		limit:    rate.Limit(float64(maxPerWindow) / rateLimitWindow.Seconds()),
		burst:    maxPerWindow,
	}
	go s.janitor()
	return s
}

func (s *LimiterSet) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// janitor drops buckets idle for two full windows so the map cannot grow
// without bound.
func (s *LimiterSet) janitor() {
	for range time.Tick(rateLimitWindow) {
		cutoff := time.Now().Add(-2 * rateLimitWindow)
		s.mu.Lock()
		for key, e := range s.limiters {
			if e.lastSeen.Before(cutoff) {
				delete(s.limiters, key)
			}
		}
		s.mu.Unlock()
	}
}

// clientKey identifies the caller for rate limiting: an API key when one
// is presented, otherwise the first forwarded hop, otherwise the peer IP.
func clientKey(c *gin.Context) string {
	if apiKey := c.GetHeader("x-api-key"); apiKey != "" {
		return "api:" + apiKey
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	return "ip:" + c.ClientIP()
}

// RateLimit rejects over-budget callers with a 429. When skipHealth is
// set, /ping and /health pass through unchecked.
func RateLimit(set *LimiterSet, message string, skipHealth bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipHealth && (c.Request.URL.Path == "/ping" || c.Request.URL.Path == "/health") {
			c.Next()
			return
		}
		if !set.Allow(clientKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": message,
			})
			return
		}
		c.Next()
	}
}
