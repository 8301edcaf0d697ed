package memo

import (
	"sync"
	"time"
)

// PollLimiter enforces a minimum interval between successive scan ticks
// (§4.6: "each poller enforces a minimum inter-query interval (>=5s)").
// Grounded on cmd/auctiond/rate_limiter.go's RateLimiter, but adapted from
// a refilling token bucket to a plain last-call timestamp: the scan loop
// is driven one tick at a time by its host, not by bursty concurrent
// callers, so there is nothing to bucket.
type PollLimiter struct {
	mu         sync.Mutex
	minInterval time.Duration
	last       time.Time
}

// NewPollLimiter constructs a limiter with the given minimum interval
// between allowed ticks.
func NewPollLimiter(minInterval time.Duration) *PollLimiter {
	return &PollLimiter{minInterval: minInterval}
}

// Allow reports whether enough time has elapsed since the last allowed
// call, and if so records this call as the new last time.
func (l *PollLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if !l.last.IsZero() && now.Sub(l.last) < l.minInterval {
		return false
	}
	l.last = now
	return true
}

// Reset clears the limiter's last-call timestamp, allowing the next call
// to Allow unconditionally.
func (l *PollLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}
