package hub

import (
	"strings"
	"sync"
	"time"
)

// Limiter is a sliding-window message-rate limiter keyed by connection id.
// Budgets (max events per window) are supplied per call so different message
// classes can share one limiter; a caller needing several buckets for the
// same connection composes keys with BucketKey.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{windows: make(map[string][]time.Time)}
}

// BucketKey derives a per-class key for a connection. Keys built this way
// are still cleaned up by Forget(connID).
func BucketKey(connID, class string) string {
	return connID + ":" + class
}

// Allow prunes timestamps older than the window, then admits the event iff
// the remaining count is below maxEvents, recording it on admission.
// Rejected events are not recorded. The result is a pure boolean; what to do
// on rejection (drop, queue, error frame) is the caller's policy.
func (l *Limiter) Allow(key string, maxEvents int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now().Add(-window)
	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= maxEvents {
		l.windows[key] = kept
		return false
	}
	l.windows[key] = append(kept, now())
	return true
}

// Forget drops every window belonging to the connection, including
// class-composed buckets. Called from the hub's teardown path.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, connID)
	prefix := connID + ":"
	for key := range l.windows {
		if strings.HasPrefix(key, prefix) {
			delete(l.windows, key)
		}
	}
}
