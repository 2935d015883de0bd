package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/config"
	"github.com/use-agent/favgrab/logging"
	"github.com/use-agent/favgrab/models"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused bucket is kept.
const idleLimiterTTL = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per caller.
type limiterSet struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newLimiterSet(cfg config.RateLimitConfig) *limiterSet {
	return &limiterSet{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		entries: make(map[string]*limiterEntry),
	}
}

// take spends one token for caller at now. When the bucket is empty it
// returns false and how long until a token frees up.
func (s *limiterSet) take(caller string, now time.Time) (bool, time.Duration) {
	s.mu.Lock()
	entry, ok := s.entries[caller]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[caller] = entry
	}
	entry.lastSeen = now
	s.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep drops buckets not used since before cutoff and reports how many.
func (s *limiterSet) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, entry := range s.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// RateLimit returns per-caller token-bucket rate limiting middleware. The
// caller is the API-key fingerprint set by Auth, or the client IP.
//
// A throttled request gets 429 with Retry-After in whole seconds. Buckets
// idle for an hour are swept every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(cfg)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			set.sweep(now.Add(-idleLimiterTTL))
		}
	}()

	return func(c *gin.Context) {
		caller := c.GetString(callerContextKey)
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}

		ok, wait := set.take(caller, time.Now())
		if !ok {
			retry := int(math.Ceil(wait.Seconds()))
			if retry < 1 {
				retry = 1
			}
			logging.Ctx(c.Request.Context()).Warn("rate limit exceeded",
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
				"retry_after_s", retry,
			)
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: "rate limit exceeded, please slow down",
				Code:  models.ErrCodeRateLimited,
			})
			return
		}

		c.Next()
	}
}
