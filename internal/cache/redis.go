package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bdt-io/bdt/internal/metrics"
)

// RedisCache implements a distributed caching layer using Redis
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
	metrics    *metrics.Metrics
}

// CacheConfig defines cache configuration
type CacheConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	KeyPrefix  string
	DefaultTTL time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(config *CacheConfig, m *metrics.Metrics) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, config.KeyPrefix, config.DefaultTTL, m), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, prefix string, ttl time.Duration, m *metrics.Metrics) *RedisCache {
	return &RedisCache{client: client, keyPrefix: prefix, defaultTTL: ttl, metrics: m}
}

func (rc *RedisCache) fail(err error) error {
	if rc.metrics != nil {
		rc.metrics.CacheErrors.Inc()
	}
	return err
}

// Get retrieves a value from Redis
func (rc *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := rc.client.Get(ctx, rc.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		countMiss(rc.metrics)
		return false, nil
	}
	if err != nil {
		return false, rc.fail(err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, rc.fail(err)
	}
	countHit(rc.metrics)
	return true, nil
}

// Set stores a value in Redis
func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return rc.fail(err)
	}
	if ttl == 0 {
		ttl = rc.defaultTTL
	}
	if err := rc.client.Set(ctx, rc.keyPrefix+key, data, ttl).Err(); err != nil {
		return rc.fail(err)
	}
	return nil
}

// Delete removes values from Redis
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = rc.keyPrefix + k
	}
	if err := rc.client.Del(ctx, full...).Err(); err != nil {
		return rc.fail(err)
	}
	return nil
}

// DeletePrefix removes all keys starting with prefix, using SCAN so large
// keyspaces are not blocked.
func (rc *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := rc.client.Scan(ctx, 0, rc.keyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return rc.fail(err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := rc.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return rc.fail(err)
	}
	return nil
}

// Incr increments a fixed-window counter.
func (rc *RedisCache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := rc.keyPrefix + key
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, rc.fail(err)
	}
	return incr.Val(), nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func countHit(m *metrics.Metrics) {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func countMiss(m *metrics.Metrics) {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
