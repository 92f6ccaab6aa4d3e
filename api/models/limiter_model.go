package models

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"golang.org/x/time/rate"
)

// LimiterIdleTTL is how long an idle client's limiter is remembered.
const LimiterIdleTTL = 10 * time.Minute

// LimiterTable hands out one token bucket per client key.
type LimiterTable struct {
	mu       sync.Mutex
	limiters *ttlworker.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewLimiterTable allows perMinute events per client with the given burst.
func NewLimiterTable(perMinute, burst int) *LimiterTable {
	if burst <= 0 {
		burst = 1
	}
	return &LimiterTable{
		limiters: ttlworker.NewCache[string, *rate.Limiter](LimiterIdleTTL),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

// Allow consumes one token for key.
func (t *LimiterTable) Allow(key string) bool {
	t.mu.Lock()
	l := t.limiters.Get(key)
	if l == nil {
		l = rate.NewLimiter(t.limit, t.burst)
	}
	// re-set on every call so an active client is never evicted mid-window
	t.limiters.Set(key, l)
	t.mu.Unlock()
	return l.Allow()
}
