package memory

import (
	"context"
	"sync"
	"time"
)

// ResetCooldown is the in-process counterpart of the Redis reset cooldown.
type ResetCooldown struct {
	mu    sync.Mutex
	until map[int64]time.Time
	ttl   time.Duration
	now   func() time.Time
}

func NewResetCooldown(ttl time.Duration) *ResetCooldown {
	return &ResetCooldown{until: make(map[int64]time.Time), ttl: ttl, now: time.Now}
}

// Acquire reports whether accountID is outside its cooldown and starts a new one when so.
func (c *ResetCooldown) Acquire(_ context.Context, accountID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.until[accountID]; ok && now.Before(until) {
		return false, nil
	}
	c.until[accountID] = now.Add(c.ttl)
	return true, nil
}

// Release drops the cooldown for accountID.
func (c *ResetCooldown) Release(_ context.Context, accountID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, accountID)
	return nil
}

// Sweep forgets expired cooldowns.
func (c *ResetCooldown) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, until := range c.until {
		if !now.Before(until) {
			delete(c.until, id)
		}
	}
}
