package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/amenitycache"
	"github.com/sells-group/homescore/internal/config"
	"github.com/sells-group/homescore/internal/db"
	"github.com/sells-group/homescore/internal/enrich"
	"github.com/sells-group/homescore/internal/monitoring"
	"github.com/sells-group/homescore/internal/resilience"
	"github.com/sells-group/homescore/pkg/amenity"
)

// amenityEnv holds the cache, fetcher and aggregator shared by the
// score, amenities and serve commands.
type amenityEnv struct {
	Cache      *amenitycache.Cache
	Fetcher    *resilience.Fetcher
	Aggregator *enrich.Aggregator
	Metrics    *monitoring.Metrics

	closers []func()
}

// Close releases backend resources. It does not save the cache.
func (e *amenityEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initAmenities opens and loads the configured cache backend and builds
// the aggregator. Callers should defer env.Close().
func initAmenities(ctx context.Context, c *config.Config, metrics *monitoring.Metrics) (*amenityEnv, error) {
	env := &amenityEnv{Metrics: metrics}

	backend, err := initCacheBackend(ctx, c.Cache, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Cache = amenitycache.New(backend)
	if err := env.Cache.Load(ctx); err != nil {
		env.Close()
		return nil, err
	}
	zap.L().Info("amenity cache loaded",
		zap.String("backend", c.Cache.Backend),
		zap.Int("entries", env.Cache.Len()),
	)

	env.Fetcher = newFetcher(c.Amenity)
	env.Aggregator = enrich.NewAggregator(env.Cache, env.Fetcher,
		enrich.WithRadius(c.Amenity.RadiusMeters),
		enrich.WithConcurrency(c.Amenity.Concurrency),
		enrich.WithFetchTimeout(fetchBudget(c.Amenity)),
		enrich.WithMetrics(metrics),
	)
	return env, nil
}

// initCacheBackend selects the cache backend. SQL backends are migrated
// before use.
func initCacheBackend(ctx context.Context, c config.CacheConfig, env *amenityEnv) (amenitycache.Backend, error) {
	switch c.Backend {
	case "", "file":
		return amenitycache.NewFileBackend(c.Path), nil

	case "sqlite":
		b, err := amenitycache.NewSQLiteBackend(c.Path)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = b.Close() })
		if err := b.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "migrate sqlite cache")
		}
		return b, nil

	case "postgres":
		pool, err := db.Connect(ctx, c.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, pool.Close)
		b := amenitycache.NewPostgresBackend(pool)
		if err := b.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "migrate postgres cache")
		}
		return b, nil

	default:
		return nil, eris.Errorf("unsupported cache backend: %s", c.Backend)
	}
}

// newFetcher builds the configured amenity client wrapped in the retry and
// breaker policy.
func newFetcher(c config.AmenityConfig) *resilience.Fetcher {
	opts := []amenity.Option{
		amenity.WithEndpoint(c.Endpoint),
		amenity.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
		amenity.WithRateLimit(c.RatePerSec),
		amenity.WithUserAgent(c.UserAgent),
	}

	var client amenity.Fetcher
	if c.Client == "library" {
		client = amenity.NewLibraryClient(opts...)
	} else {
		client = amenity.NewInterpreterClient(opts...)
	}

	policy := resilience.PolicyFromConfig(c.MaxAttempts, c.BreakerThreshold, c.BreakerResetSecs)
	return resilience.NewFetcher(client, policy)
}

// fetchBudget bounds one shared fetch: every attempt's HTTP timeout plus a
// minute for rate limiting and backoff.
func fetchBudget(c config.AmenityConfig) time.Duration {
	return time.Duration(c.MaxAttempts*c.TimeoutSecs)*time.Second + time.Minute
}

// saveCache persists the cache with a fresh context so an interrupted
// command still keeps what it fetched.
func saveCache(cache *amenitycache.Cache) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := cache.Save(ctx); err != nil {
		return err
	}
	zap.L().Info("amenity cache saved", zap.Int("entries", cache.Len()))
	return nil
}
