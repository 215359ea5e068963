package memory

import (
	"sync"
	"time"
)

// RateLimitStore is a process-local sliding-window limiter satisfying echo's
// middleware.RateLimiterStore. It is used when no Redis is configured.
type RateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimitStore(limit int, window time.Duration) *RateLimitStore {
	return &RateLimitStore{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records an attempt for identifier and reports whether it fits the window.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= s.limit {
		s.attempts[identifier] = kept
		return false, nil
	}
	s.attempts[identifier] = append(kept, now)
	return true, nil
}

// Sweep drops identifiers with no attempt inside the window.
func (s *RateLimitStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	for id, times := range s.attempts {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.attempts, id)
		}
	}
}
