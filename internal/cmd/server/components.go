package server

import (
	"context"
	"fmt"

	"github.com/irfndi/prism-dashboard-go/internal/api/handlers"
	"github.com/irfndi/prism-dashboard-go/internal/cache"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/database"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/metrics"
	"github.com/irfndi/prism-dashboard-go/internal/services"
)

// cacheKeyPrefix namespaces the Redis keys written by the result cache.
const cacheKeyPrefix = "prism:"

// components are the long-lived resources a command works with.
type components struct {
	db        *database.PostgresDB
	redis     *database.RedisClient
	store     cache.Store
	results   *cache.ResultCache
	readings  *database.ReadingRepository
	users     *database.UserRepository
	dashboard *services.DashboardService
	logger    *logging.StandardLogger
}

// openComponents connects to Postgres and the configured cache and builds
// the dashboard service on top of them. collector may be nil.
func openComponents(ctx context.Context, cfg *config.Config, logger *logging.StandardLogger, collector *metrics.Collector) (*components, error) {
	c := &components{logger: logger}

	db, err := database.NewPostgresConnection(ctx, cfg.Database, logger.Logger)
	if err != nil {
		return nil, err
	}
	c.db = db

	if err := c.openCache(ctx, cfg, collector); err != nil {
		c.Close()
		return nil, err
	}

	pool := database.NewTracedPool(db.Pool, logger)
	c.readings = database.NewReadingRepository(pool)
	c.users = database.NewUserRepository(pool)

	dashboard, err := services.NewDashboardService(c.readings, c.results, cfg.Analysis, collector, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create dashboard service: %w", err)
	}
	c.dashboard = dashboard
	return c, nil
}

func (c *components) openCache(ctx context.Context, cfg *config.Config, collector *metrics.Collector) error {
	switch cfg.Cache.Driver {
	case "redis":
		rc, err := database.NewRedisConnection(ctx, cfg.Redis, c.logger.Logger)
		if err != nil {
			return err
		}
		c.redis = rc
		c.store = cache.NewRedisStore(rc.Client, cacheKeyPrefix)
	case "bolt":
		store, err := cache.OpenBoltStore(cfg.Cache.BoltPath)
		if err != nil {
			return err
		}
		c.store = store
	default:
		c.store = cache.NopStore{}
	}

	var recorder cache.Recorder
	if collector != nil {
		recorder = collector
	}
	c.results = cache.NewResultCache(c.store, cfg.Cache.TTLDuration(), c.logger, recorder)
	c.logger.WithComponent("cache").WithField("driver", cfg.Cache.Driver).Info("Result cache ready")
	return nil
}

// healthCheckers returns the database and cache probes for the health
// handler. A probe is a nil interface when its backend is not in use.
func (c *components) healthCheckers() (db, redis handlers.HealthChecker) {
	if c.db != nil {
		db = c.db
	}
	if c.redis != nil {
		redis = c.redis
	}
	return db, redis
}

// Close releases every opened resource in reverse order.
func (c *components) Close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close cache store")
		}
	}
	if c.redis != nil {
		c.redis.Close()
	}
	if c.db != nil {
		c.db.Close()
	}
}
