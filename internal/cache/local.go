package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bdt-io/bdt/internal/metrics"
)

// LocalCache provides an in-memory cache with TTL support
type LocalCache struct {
	mu       sync.Mutex
	items    map[string]*localItem
	config   *LocalCacheConfig
	metrics  *metrics.Metrics
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// LocalCacheConfig configures a LocalCache
type LocalCacheConfig struct {
	MaxSize         int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

type localItem struct {
	value      []byte
	counter    int64
	expiresAt  time.Time
	accessedAt time.Time
}

// NewLocalCache creates a new local cache
func NewLocalCache(config *LocalCacheConfig, m *metrics.Metrics) *LocalCache {
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	lc := &LocalCache{
		items:   make(map[string]*localItem),
		config:  config,
		metrics: m,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	if config.CleanupInterval > 0 {
		go lc.cleanupLoop(config.CleanupInterval)
	}
	return lc
}

// live returns the unexpired item at key. Callers hold lc.mu.
func (lc *LocalCache) live(key string) *localItem {
	item, ok := lc.items[key]
	if !ok {
		return nil
	}
	if lc.now().After(item.expiresAt) {
		delete(lc.items, key)
		return nil
	}
	return item
}

// Get retrieves an item from local cache
func (lc *LocalCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	lc.mu.Lock()
	item := lc.live(key)
	var data []byte
	if item != nil {
		item.accessedAt = lc.now()
		data = item.value
	}
	lc.mu.Unlock()

	if data == nil {
		countMiss(lc.metrics)
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	countHit(lc.metrics)
	return true, nil
}

// Set stores an item in local cache
func (lc *LocalCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = lc.config.DefaultTTL
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if _, exists := lc.items[key]; !exists && len(lc.items) >= lc.config.MaxSize {
		lc.evictLRU()
	}
	now := lc.now()
	lc.items[key] = &localItem{value: data, expiresAt: now.Add(ttl), accessedAt: now}
	return nil
}

// Delete removes items from local cache
func (lc *LocalCache) Delete(_ context.Context, keys ...string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for _, k := range keys {
		delete(lc.items, k)
	}
	return nil
}

// DeletePrefix removes all items whose key starts with prefix
func (lc *LocalCache) DeletePrefix(_ context.Context, prefix string) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for k := range lc.items {
		if strings.HasPrefix(k, prefix) {
			delete(lc.items, k)
		}
	}
	return nil
}

// Incr increments a fixed-window counter
func (lc *LocalCache) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	item := lc.live(key)
	if item == nil {
		if len(lc.items) >= lc.config.MaxSize {
			lc.evictLRU()
		}
		item = &localItem{expiresAt: lc.now().Add(window)}
		lc.items[key] = item
	}
	item.counter++
	item.accessedAt = lc.now()
	return item.counter, nil
}

// Len returns the number of stored items, expired ones included
func (lc *LocalCache) Len() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.items)
}

// evictLRU removes the least recently used item
func (lc *LocalCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range lc.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}

	if oldestKey != "" {
		delete(lc.items, oldestKey)
	}
}

// cleanupLoop periodically removes expired items
func (lc *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lc.cleanup()
		case <-lc.stopCh:
			return
		}
	}
}

func (lc *LocalCache) cleanup() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := lc.now()
	for key, item := range lc.items {
		if now.After(item.expiresAt) {
			delete(lc.items, key)
		}
	}
}

// Close stops the cleanup goroutine
func (lc *LocalCache) Close() error {
	lc.stopOnce.Do(func() { close(lc.stopCh) })
	return nil
}
