package memory

import (
	"context"
	"testing"
	"time"
)

func TestResetCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewResetCooldown(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := c.Acquire(ctx, 1); !ok {
		t.Fatalf("first request must pass")
	}
	if ok, _ := c.Acquire(ctx, 1); ok {
		t.Fatalf("second request inside cooldown must be held back")
	}
	if ok, _ := c.Acquire(ctx, 2); !ok {
		t.Fatalf("cooldown is per account")
	}

	now = now.Add(time.Minute)
	if ok, _ := c.Acquire(ctx, 1); !ok {
		t.Fatalf("request after cooldown must pass")
	}

	now = now.Add(2 * time.Minute)
	c.Sweep()
	if len(c.until) != 0 {
		t.Fatalf("sweep kept %d entries", len(c.until))
	}
}

func TestResetCooldown_Release(t *testing.T) {
	c := NewResetCooldown(time.Hour)
	ctx := context.Background()

	if ok, _ := c.Acquire(ctx, 5); !ok {
		t.Fatal("first request must pass")
	}
	if err := c.Release(ctx, 5); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := c.Acquire(ctx, 5); !ok {
		t.Fatal("released cooldown must admit the next request")
	}
}
