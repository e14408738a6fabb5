// Package cache stores derived read models, such as lookup lists and
// statistics, in Redis or in process memory.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/metrics"
)

// Store is implemented by RedisCache and LocalCache. Values are JSON
// encoded so both backends behave the same.
type Store interface {
	// Get decodes the value at key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Incr increments a counter that expires window after its first hit.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

// Key prefixes.
const (
	KeyServices            = "lookups:services"
	KeyServiceIntervenants = "lookups:service-intervenants"
	KeyStatisticsPrefix    = "stats:"
	KeyRateLimitPrefix     = "ratelimit:"
)

// StatisticsKey identifies a cached statistics window.
func StatisticsKey(from, to string, serviceIntervenantID int64) string {
	return fmt.Sprintf("%s%s:%s:%d", KeyStatisticsPrefix, from, to, serviceIntervenantID)
}

// RateLimitKey identifies a request counter for a client.
func RateLimitKey(client string) string {
	return KeyRateLimitPrefix + strings.ReplaceAll(client, ":", "_")
}

// New returns a Redis backed store when Redis is enabled and reachable, and
// falls back to a LocalCache otherwise.
func New(cfg config.RedisConfig, m *metrics.Metrics, log zerolog.Logger) Store {
	if cfg.Enabled {
		rc, err := NewRedisCache(&CacheConfig{
			Addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:   cfg.Password,
			DB:         cfg.DB,
			PoolSize:   cfg.PoolSize,
			KeyPrefix:  cfg.Prefix,
			DefaultTTL: cfg.TTL,
		}, m)
		if err == nil {
			log.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).Msg("using redis cache")
			return rc
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to local cache")
	}
	return NewLocalCache(&LocalCacheConfig{
		MaxSize:         10000,
		DefaultTTL:      cfg.TTL,
		CleanupInterval: time.Minute,
	}, m)
}
