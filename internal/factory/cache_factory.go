package factory

import (
	"github.com/mikey/mailview/internal/adapters/cache"
	"github.com/mikey/mailview/internal/config"
	"github.com/mikey/mailview/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates render caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRenderCache creates the in-memory render cache. It returns nil when
// caching is disabled.
func (f *CacheFactory) CreateRenderCache() (core.RenderCache, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	if !cacheCfg.Enabled {
		f.logger.Info("Render cache disabled")
		return nil, nil
	}

	f.logger.Info("Render cache enabled",
		zap.Duration("ttl", cacheCfg.TTL),
		zap.Int("max_entries", cacheCfg.MaxEntries))
	return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency, cacheCfg.MaxEntries), nil
}
