package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = time.Hour

// clientLimiters is an echo RateLimiterStore keyed by client IP. Limiters
// are dropped wholesale once an hour to bound memory.
type clientLimiters struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	now         func() time.Time
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiters{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow implements middleware.RateLimiterStore.
func (s *clientLimiters) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastCleanup) > limiterTTL {
		s.limiters = make(map[string]*rate.Limiter)
		s.lastCleanup = now
	}
	limiter, ok := s.limiters[identifier]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[identifier] = limiter
	}
	return limiter.AllowN(now, 1), nil
}
