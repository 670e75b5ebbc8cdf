package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/praxis-labs/deepresearch/internal/circuitbreaker"
	"github.com/praxis-labs/deepresearch/internal/metrics"
	"github.com/praxis-labs/deepresearch/internal/research"
)

const (
	redisResultKeyPrefix = "research:result:"
	redisIndexKey        = "research:index"
)

// RedisStore persists results as JSON values with a TTL, plus an index list
// for recency-ordered listing. All calls go through the circuit-breaker
// wrapper so a flapping Redis degrades to errors instead of stalls.
type RedisStore struct {
	client *circuitbreaker.RedisWrapper
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection. The password
// comes from REDIS_PASSWORD when set.
func NewRedisStore(addr string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	wrapped := circuitbreaker.NewRedisWrapper(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrapped.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: wrapped, logger: logger, ttl: ttl}, nil
}

// newRedisStoreWithClient is the injection seam for tests.
func newRedisStoreWithClient(client *circuitbreaker.RedisWrapper, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger, ttl: ttl}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, result research.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		metrics.StoreAppends.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.Set(ctx, redisResultKeyPrefix+result.ID, data, s.ttl); err != nil {
		metrics.StoreAppends.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("store result: %w", err)
	}
	if err := s.client.RPush(ctx, redisIndexKey, result.ID); err != nil {
		// The result itself is stored; a stale index entry only affects List.
		s.logger.Warn("Failed to index research result",
			zap.String("research_id", result.ID), zap.Error(err))
	}
	metrics.StoreAppends.WithLabelValues("redis", "ok").Inc()
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (research.Result, error) {
	data, err := s.client.Get(ctx, redisResultKeyPrefix+id)
	if errors.Is(err, redis.Nil) {
		return research.Result{}, ErrNotFound
	}
	if err != nil {
		return research.Result{}, fmt.Errorf("fetch result: %w", err)
	}
	var r research.Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return research.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}

// List implements Store. Expired results are skipped; their index entries are
// left to age out with the list.
func (s *RedisStore) List(ctx context.Context, limit int) ([]research.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.LRange(ctx, redisIndexKey, int64(-limit), -1)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	out := make([]research.Summary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		r, err := s.Get(ctx, ids[i])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(r))
	}
	return out, nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }
