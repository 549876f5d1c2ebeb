// Package ratelimit provides per-user sliding-window admission control.
// State lives only in memory: a restart resets all limits, which is
// acceptable for a soft abuse control.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	windows map[int64][]time.Time
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		windows: make(map[int64][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether the user may perform another request. Timestamps
// older than the window are pruned on every call; an admitted request
// appends the current time.
func (l *Limiter) Allow(userID int64, maxRequests int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := l.windows[userID]

	keep := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) <= window {
			keep = append(keep, ts)
		}
	}

	if len(keep) >= maxRequests {
		l.windows[userID] = keep
		return false
	}

	l.windows[userID] = append(keep, now)
	return true
}

// GC evicts users whose window is empty or whose last request is older
// than twice the window, bounding memory growth from one-shot users.
// Returns how many users were evicted.
func (l *Limiter) GC(window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for userID, stamps := range l.windows {
		if len(stamps) == 0 || now.Sub(stamps[len(stamps)-1]) > 2*window {
			delete(l.windows, userID)
			evicted++
		}
	}
	return evicted
}

// TrackedUsers returns how many users currently hold window state.
func (l *Limiter) TrackedUsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
