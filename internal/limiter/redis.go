package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a fixed-window attempt counter in Redis. Each failed
// login increments a per-(email, ip) key that expires with the window; the
// counter is deleted on a successful login.
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter builds a limiter on an existing client.
func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &RedisLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLimiter) key(email, ipHash string) string {
	return fmt.Sprintf("login_attempts:%s:%s", email, ipHash)
}

func (l *RedisLimiter) Allow(ctx context.Context, email, ipHash string) (bool, error) {
	count, err := l.client.Get(ctx, l.key(email, ipHash)).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		// Redis being down must not lock everyone out.
		return true, err
	}
	return count < l.maxAttempts, nil
}

func (l *RedisLimiter) Success(ctx context.Context, email, ipHash string) error {
	return l.client.Del(ctx, l.key(email, ipHash)).Err()
}

func (l *RedisLimiter) Failure(ctx context.Context, email, ipHash string) error {
	key := l.key(email, ipHash)
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}
