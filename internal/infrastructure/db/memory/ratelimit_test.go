package memory

import (
	"testing"
	"time"
)

func TestRateLimitStore_SlidingWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewRateLimitStore(5, 15*time.Minute)
	s.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if ok, _ := s.Allow("1.2.3.4"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		now = now.Add(time.Minute)
	}
	if ok, _ := s.Allow("1.2.3.4"); ok {
		t.Fatal("6th attempt inside the window must be denied")
	}
	if ok, _ := s.Allow("5.6.7.8"); !ok {
		t.Fatal("other identifiers are independent")
	}

	// The first attempt was at 12:00; at 12:15:01 it has left the window.
	now = time.Date(2025, 3, 1, 12, 15, 1, 0, time.UTC)
	if ok, _ := s.Allow("1.2.3.4"); !ok {
		t.Fatal("expected a slot once the oldest attempt slid out")
	}
	if ok, _ := s.Allow("1.2.3.4"); ok {
		t.Fatal("window is full again")
	}
}

func TestRateLimitStore_DeniedAttemptsDoNotExtendWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewRateLimitStore(1, time.Minute)
	s.now = func() time.Time { return now }

	if ok, _ := s.Allow("ip"); !ok {
		t.Fatal("first attempt allowed")
	}
	now = now.Add(30 * time.Second)
	if ok, _ := s.Allow("ip"); ok {
		t.Fatal("second attempt denied")
	}
	now = now.Add(31 * time.Second)
	if ok, _ := s.Allow("ip"); !ok {
		t.Fatal("denied attempts must not be counted")
	}
}

func TestRateLimitStore_Sweep(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewRateLimitStore(3, time.Minute)
	s.now = func() time.Time { return now }

	_, _ = s.Allow("old")
	now = now.Add(2 * time.Minute)
	_, _ = s.Allow("new")
	s.Sweep()

	if _, ok := s.attempts["old"]; ok {
		t.Fatal("expired identifier should be swept")
	}
	if _, ok := s.attempts["new"]; !ok {
		t.Fatal("live identifier must be kept")
	}
}
