package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker periodically logs a snapshot and runs a checkpoint hook, used
// by the server to persist the amenity cache between shutdowns.
type Checker struct {
	collector  *Collector
	checkpoint func(ctx context.Context) error
	interval   time.Duration
}

// NewChecker creates a checker. A non-positive interval defaults to 5 minutes.
func NewChecker(collector *Collector, checkpoint func(ctx context.Context) error, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{collector: collector, checkpoint: checkpoint, interval: interval}
}

// Run blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting checkpoint loop", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("checkpoint loop stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap := c.collector.Collect()
	log.Info("monitoring: status",
		zap.Int("cache_entries", snap.CacheEntries),
		zap.Int64("cache_hits", snap.CacheHits),
		zap.Int64("cache_misses", snap.CacheMisses),
		zap.String("breaker", snap.BreakerState),
	)
	if c.checkpoint == nil {
		return
	}
	if err := c.checkpoint(ctx); err != nil {
		log.Error("monitoring: checkpoint failed", zap.Error(err))
	}
}
