package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts a hit and starts the window on the first one. It
// returns the hit count and the milliseconds left in the window.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`

const redisTimeout = 250 * time.Millisecond

// RedisStore counts requests in fixed windows shared by every replica.
// Burst is ignored.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
	prefix string
	now    func() time.Time
}

// NewRedisStore returns nil for a nil client so callers can fall back to
// the in-process store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		prefix: prefix,
		now:    time.Now,
	}
}

// Take records one hit in the current window for key.
func (s *RedisStore) Take(ctx context.Context, key string, rule Rule) (Info, error) {
	ttl := rule.Window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	res, err := s.script.Run(ctx, s.client, []string{s.prefix + ":" + key}, ttl).Int64Slice()
	if err != nil {
		return Info{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Info{}, fmt.Errorf("unexpected rate limit script reply: %v", res)
	}

	count, left := int(res[0]), time.Duration(res[1])*time.Millisecond
	if left < 0 {
		left = rule.Window
	}
	info := Info{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetTime: s.now().Add(left),
	}
	if !info.Allowed {
		info.RetryAfter = left
	}
	return info, nil
}
