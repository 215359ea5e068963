package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const rateLimitTimeout = 500 * time.Millisecond

// slidingWindowScript keeps one sorted-set member per admitted attempt,
// scored in milliseconds. Members older than the window are trimmed before
// counting, so the window slides with every call.
//
//	KEYS[1] window key
//	ARGV[1] now (ms)  ARGV[2] window (ms)  ARGV[3] limit  ARGV[4] member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RateLimitStore is a sliding-window limiter shared by every API instance.
// It satisfies echo's middleware.RateLimiterStore. Redis failures admit the
// request and are logged.
type RateLimitStore struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	log    zerolog.Logger

	now func() time.Time
	seq atomic.Uint64
	// OnError is called for every Redis failure, after logging.
	OnError func(err error)
}

// NewRateLimitStore returns a store admitting limit attempts per identifier
// within window. name namespaces the keys, e.g. "login".
func NewRateLimitStore(client redis.Scripter, name string, limit int, window time.Duration, log zerolog.Logger) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: "ratelimit:" + name + ":",
		limit:  limit,
		window: window,
		log:    log,
		now:    time.Now,
	}
}

// Allow records an attempt for identifier and reports whether it fits the window.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
	defer cancel()

	now := s.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	allowed, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.prefix + identifier},
		now.UnixMilli(), s.window.Milliseconds(), s.limit, member,
	).Int()
	if err != nil {
		err = fmt.Errorf("rate limit %s: %w", s.prefix, err)
		s.log.Warn().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable, admitting request")
		if s.OnError != nil {
			s.OnError(err)
		}
		return true, nil
	}
	return allowed == 1, nil
}
