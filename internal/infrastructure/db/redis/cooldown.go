package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownPrefix = "reset-cooldown:"

// ResetCooldown remembers recent password reset requests per account.
// Key format: reset-cooldown:<account_id>
type ResetCooldown struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewResetCooldown creates a ResetCooldown wrapping the given Redis client.
func NewResetCooldown(client redis.Cmdable, ttl time.Duration) *ResetCooldown {
	return &ResetCooldown{client: client, ttl: ttl}
}

// Acquire reports whether no reset was requested for accountID within the
// cooldown, and starts a new one when so.
func (c *ResetCooldown) Acquire(ctx context.Context, accountID int64) (bool, error) {
	ok, err := c.client.SetNX(ctx, cooldownPrefix+strconv.FormatInt(accountID, 10), "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reset cooldown: %w", err)
	}
	return ok, nil
}

// Release drops the cooldown for accountID.
func (c *ResetCooldown) Release(ctx context.Context, accountID int64) error {
	if err := c.client.Del(ctx, cooldownPrefix+strconv.FormatInt(accountID, 10)).Err(); err != nil {
		return fmt.Errorf("reset cooldown: %w", err)
	}
	return nil
}
