package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/posturemon/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// limiterSet is one token bucket per client IP. Buckets idle for limiterIdleTTL are dropped.
type limiterSet struct {
	mu      sync.Mutex
	buckets map[string]*rateLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newLimiterSet(perMinute int) *limiterSet {
	if perMinute < 1 {
		perMinute = 1
	}
	return &limiterSet{
		buckets: map[string]*rateLimiter{},
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
		now:     time.Now,
	}
}

// RateLimitMiddleware applies a per-IP token bucket refilled at perMinute requests a minute.
// A non-positive perMinute disables limiting.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(ctx *gin.Context) { ctx.Next() }
	}
	set := newLimiterSet(perMinute)

	return func(ctx *gin.Context) {
		if !set.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, l := range s.buckets {
		if now.After(l.expires) {
			delete(s.buckets, k)
		}
	}

	l, ok := s.buckets[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)
	return l.limiter.AllowN(now, 1)
}
