package cache

import (
	"sync"
	"time"

	"github.com/helmcode/errfriendly/pkg/config"
)

// Window is the span over which requests are counted.
const Window = 60 * time.Second

// RateLimiter admits at most ai.max_requests_per_minute calls in any
// sliding 60 second window. Denied calls are not queued.
type RateLimiter struct {
	store *config.Store
	now   func() time.Time

	mu    sync.Mutex
	calls []time.Time
}

func NewRateLimiter(store *config.Store) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// TryAcquire reports whether a call may proceed and records it if so.
func (r *RateLimiter) TryAcquire() bool {
	max := r.store.Load().AI.MaxRequestsPerMinute

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-Window)
	kept := r.calls[:0]
	for _, t := range r.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.calls = kept
	if len(r.calls) >= max {
		return false
	}
	r.calls = append(r.calls, now)
	return true
}

// Remaining returns how many calls the current window still admits.
func (r *RateLimiter) Remaining() int {
	max := r.store.Load().AI.MaxRequestsPerMinute
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-Window)
	used := 0
	for _, t := range r.calls {
		if t.After(cutoff) {
			used++
		}
	}
	if used >= max {
		return 0
	}
	return max - used
}
