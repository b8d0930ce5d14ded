package middleware

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/purpose-technology/namapp-server/internal/logging"
)

// RedisRateLimiter is a fixed-window limiter shared across server replicas.
// Redis errors fail open: losing rate limiting is better than losing the API.
type RedisRateLimiter struct {
	client  *redis.Client
	logger  *logging.Logger
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
}

// NewRedisRateLimiter connects to Redis and verifies the connection.
func NewRedisRateLimiter(addr, password string, db, limit int, window time.Duration, logger *logging.Logger) (*RedisRateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client:  client,
		logger:  logger,
		limit:   limit,
		window:  window,
		prefix:  "namapp:ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

// Allow counts the request against the key's current window.
func (rl *RedisRateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logError("incr", err)
		return true
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.logError("expire", err)
		}
	}
	return int(counter) <= rl.limit
}

// Close releases the Redis connection.
func (rl *RedisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *RedisRateLimiter) logError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.WithError(err).WithFields(map[string]interface{}{"op": op}).Warn("redis rate limiter error")
}
