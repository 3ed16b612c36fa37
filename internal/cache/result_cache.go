package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/sirupsen/logrus"
)

// Recorder receives cache outcomes, typically Prometheus counters.
type Recorder interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

// ResultCacheStats tracks cache performance metrics
type ResultCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// HitRate returns hits as a percentage of lookups.
func (s ResultCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// ResultCache stores JSON-encoded precomputed results on a Store.
type ResultCache struct {
	store    Store
	ttl      time.Duration
	logger   *logging.StandardLogger
	recorder Recorder

	mu    sync.RWMutex
	stats ResultCacheStats
}

// NewResultCache wraps store. recorder may be nil.
func NewResultCache(store Store, ttl time.Duration, logger *logging.StandardLogger, recorder Recorder) *ResultCache {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	return &ResultCache{
		store:    store,
		ttl:      ttl,
		logger:   logger,
		recorder: recorder,
	}
}

// GetJSON decodes the value of key into dst. It returns false on a miss. A
// corrupt entry is deleted and reported as a miss.
func (c *ResultCache) GetJSON(ctx context.Context, kind, key string, dst interface{}) (bool, error) {
	start := time.Now()
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.miss(kind, key, start)
		return false, nil
	}
	if err != nil {
		c.count(func(s *ResultCacheStats) { s.Errors++ })
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		_ = c.store.Delete(ctx, key)
		c.miss(kind, key, start)
		return false, nil
	}

	c.count(func(s *ResultCacheStats) { s.Hits++ })
	if c.recorder != nil {
		c.recorder.CacheHit(kind)
	}
	c.logger.LogCacheOperation("get", key, true, time.Since(start))
	return true, nil
}

// SetJSON encodes value and stores it under key.
func (c *ResultCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	start := time.Now()
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.count(func(s *ResultCacheStats) { s.Errors++ })
		return err
	}
	c.count(func(s *ResultCacheStats) { s.Sets++ })
	c.logger.LogCacheOperation("set", key, false, time.Since(start))
	return nil
}

// Invalidate removes keys.
func (c *ResultCache) Invalidate(ctx context.Context, keys ...string) error {
	return c.store.Delete(ctx, keys...)
}

// GetStats returns current cache statistics
func (c *ResultCache) GetStats() ResultCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *ResultCache) LogStats() {
	stats := c.GetStats()
	c.logger.WithComponent("result_cache").WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"errors":   stats.Errors,
		"hit_rate": fmt.Sprintf("%.2f%%", stats.HitRate()),
	}).Info("Result cache stats")
}

func (c *ResultCache) miss(kind, key string, start time.Time) {
	c.count(func(s *ResultCacheStats) { s.Misses++ })
	if c.recorder != nil {
		c.recorder.CacheMiss(kind)
	}
	c.logger.LogCacheOperation("get", key, false, time.Since(start))
}

func (c *ResultCache) count(update func(s *ResultCacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}
