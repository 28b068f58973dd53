package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// RedisRateLimiter is a fixed-window limiter shared by every replica.
type RedisRateLimiter struct {
	redis  *redis.Client
	config *Config
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(rdb *redis.Client, config *Config) *RedisRateLimiter {
	return &RedisRateLimiter{redis: rdb, config: config, prefix: "gochat:ratelimit", now: time.Now}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (*RateLimitInfo, error) {
	now := r.now().UTC()
	windowStart := now.Truncate(r.config.Window)
	windowEnd := windowStart.Add(r.config.Window)
	ttl := windowEnd.Sub(now).Milliseconds()
	if ttl < 1 {
		ttl = 1
	}

	redisKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, windowStart.Unix())
	used, err := incrWithTTLScript.Run(ctx, r.redis, []string{redisKey}, ttl).Int64()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	info := &RateLimitInfo{
		Allowed:   used <= int64(r.config.MaxRequests),
		Limit:     r.config.MaxRequests,
		Remaining: r.config.MaxRequests - int(used),
		ResetTime: windowEnd,
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	if !info.Allowed {
		info.RetryAfter = windowEnd.Sub(now)
	}
	return info, nil
}
