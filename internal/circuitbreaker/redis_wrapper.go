package circuitbreaker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWrapper wraps a Redis client with a circuit breaker so a flapping
// Redis never stalls research sessions behind dial timeouts.
type RedisWrapper struct {
	client  *redis.Client
	breaker *CircuitBreaker
}

// NewRedisWrapper creates a circuit-breaker-wrapped Redis client.
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return &RedisWrapper{
		client:  client,
		breaker: New("redis", cfg, logger),
	}
}

// Get wraps redis GET. A miss (redis.Nil) is passed through to the caller
// but does not count as a backend failure.
func (w *RedisWrapper) Get(ctx context.Context, key string) (string, error) {
	var val string
	var getErr error
	err := w.breaker.Execute(ctx, func() error {
		val, getErr = w.client.Get(ctx, key).Result()
		if getErr == redis.Nil {
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", err
	}
	return val, getErr
}

// Set wraps redis SET with expiry.
func (w *RedisWrapper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return w.breaker.Execute(ctx, func() error {
		return w.client.Set(ctx, key, value, ttl).Err()
	})
}

// RPush wraps redis RPUSH.
func (w *RedisWrapper) RPush(ctx context.Context, key string, values ...interface{}) error {
	return w.breaker.Execute(ctx, func() error {
		return w.client.RPush(ctx, key, values...).Err()
	})
}

// LRange wraps redis LRANGE.
func (w *RedisWrapper) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var out []string
	err := w.breaker.Execute(ctx, func() error {
		var err error
		out, err = w.client.LRange(ctx, key, start, stop).Result()
		return err
	})
	return out, err
}

// Ping wraps redis PING.
func (w *RedisWrapper) Ping(ctx context.Context) error {
	return w.breaker.Execute(ctx, func() error {
		return w.client.Ping(ctx).Err()
	})
}

// Close closes the underlying client.
func (w *RedisWrapper) Close() error {
	return w.client.Close()
}

// State exposes the breaker state for health checks.
func (w *RedisWrapper) State() State {
	return w.breaker.State()
}
