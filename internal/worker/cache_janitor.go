package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/pkg/cache"
)

// CacheJanitor periodically removes expired identity cache entries.
// Correctness never depends on it: expired entries are already rejected on
// read. The janitor only keeps memory bounded for principals that stop
// making requests.
type CacheJanitor struct {
	cache    *cache.Cache
	interval time.Duration
	logger   *slog.Logger
}

// NewCacheJanitor creates a janitor for the given cache
func NewCacheJanitor(c *cache.Cache, interval time.Duration, logger *slog.Logger) *CacheJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &CacheJanitor{
		cache:    c,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (j *CacheJanitor) Start(ctx context.Context) {
	j.logger.Info("cache janitor started",
		slog.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cache janitor stopped")
			return
		case <-ticker.C:
			removed := j.cache.Sweep()
			metrics.ObserveCacheSweep(removed)
			if removed > 0 {
				j.logger.Debug("swept expired cache entries",
					slog.Int("removed", removed),
				)
			}
		}
	}
}
