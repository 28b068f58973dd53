package turnlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared across replicas. The TTL bounds how long a crashed
// holder can block a chat.
type Redis struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{redis: rdb, ttl: ttl, prefix: "gochat:turnlock"}
}

func (r *Redis) Acquire(ctx context.Context, chatID string) (func(), error) {
	key := fmt.Sprintf("%s:%s", r.prefix, chatID)
	token := uuid.NewString()
	ok, err := r.redis.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("turn lock setnx: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.redis, []string{key}, token).Err(); err != nil {
				log.Warn().Err(err).Str("chat_id", chatID).Msg("turn lock release failed")
			}
		})
	}, nil
}
