package ratelimit

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "feeds:ratelimit:"

// slidingWindowScript trims entries older than the window and records the
// request only when the window still has room, so rejected requests do not
// count against the caller.
//
// KEYS[1] window key; ARGV: now (ms), cutoff (ms), limit, member, ttl (ms).
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
if redis.call('ZCARD', key) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// RedisLimiter shares limits across replicas with a sliding window kept in a
// sorted set per key. Each admitted request is a member scored by its
// timestamp; at most limit members fit in any window.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}

	now := l.now().UnixMilli()
	redisKey := fmt.Sprintf("%s%s:%d", redisKeyPrefix, key, window.Milliseconds())

	sfx, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return false, err
	}
	member := fmt.Sprintf("%d:%d", now, sfx)

	admitted, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKey},
		now, now-window.Milliseconds(), limit, member, 2*window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return admitted == 1, nil
}
