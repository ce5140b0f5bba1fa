// Package enrich resolves the amenities around each listing and reduces
// them to per-category mean distances.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/homescore/internal/amenitycache"
	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
	"github.com/sells-group/homescore/internal/monitoring"
	"github.com/sells-group/homescore/pkg/amenity"
)

// DefaultRadiusMeters is the search radius around each listing.
const DefaultRadiusMeters = 3000

// DefaultFetchTimeout bounds one shared fetch, retries included.
const DefaultFetchTimeout = 2 * time.Minute

// Aggregator resolves amenities through the cache, fetching on a miss.
type Aggregator struct {
	cache       *amenitycache.Cache
	fetcher     amenity.Fetcher
	radius       int
	concurrency  int
	fetchTimeout time.Duration
	metrics      *monitoring.Metrics

	flight singleflight.Group
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRadius sets the search radius in meters.
func WithRadius(meters int) Option {
	return func(a *Aggregator) {
		if meters > 0 {
			a.radius = meters
		}
	}
}

// WithConcurrency sets how many listings SummarizeAll resolves at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithFetchTimeout bounds each fetch independently of the callers waiting
// on it.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithMetrics records cache lookups and fetch outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an Aggregator over cache and fetcher.
func NewAggregator(cache *amenitycache.Cache, fetcher amenity.Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		cache:       cache,
		fetcher:     fetcher,
		radius:       DefaultRadiusMeters,
		concurrency:  1,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve returns the amenities for coord's cache key, fetching and caching
// them on a miss. Concurrent misses on one key share a single fetch, which
// runs detached from any one caller's cancellation. Each caller stops
// waiting when its own ctx is done. Failed fetches are not cached.
func (a *Aggregator) Resolve(ctx context.Context, coord geo.Coordinate) ([]model.Amenity, error) {
	key := geo.RoundKey(coord)
	if cached, ok := a.cache.Get(key); ok {
		a.metrics.IncCacheLookup(true)
		return cached, nil
	}
	a.metrics.IncCacheLookup(false)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "enrich: resolve %s", key)
	}

	ch := a.flight.DoChan(key.String(), func() (any, error) {
		if cached, ok := a.cache.Peek(key); ok {
			return cached, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.fetchTimeout)
		defer cancel()

		start := time.Now()
		found, err := a.fetcher.Fetch(fetchCtx, coord.Lat, coord.Lon, a.radius)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			a.metrics.ObserveFetch(monitoring.OutcomeFailed, elapsed)
			return nil, err
		}
		a.metrics.ObserveFetch(monitoring.OutcomeOK, elapsed)
		if found == nil {
			found = []model.Amenity{}
		}
		a.cache.Put(key, found)
		return found, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "enrich: resolve %s", key)
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, eris.Wrapf(res.Err, "enrich: resolve %s", key)
	}

	amenities := res.Val.([]model.Amenity)
	if res.Shared {
		out := make([]model.Amenity, len(amenities))
		copy(out, amenities)
		return out, nil
	}
	return amenities, nil
}

// Summarize resolves coord's amenities and reduces them to category means.
// A failed fetch yields a summary with every distance absent and
// Status fetch_failed.
func (a *Aggregator) Summarize(ctx context.Context, coord geo.Coordinate) model.AmenitySummary {
	amenities, err := a.Resolve(ctx, coord)
	if err != nil {
		zap.L().Warn("enrich: amenity fetch failed",
			zap.Float64("lat", coord.Lat),
			zap.Float64("lon", coord.Lon),
			zap.Error(err),
		)
		return model.AmenitySummary{Coordinate: coord, Status: model.SummaryFetchFailed}
	}
	return Summarize(coord, amenities)
}

// SummarizeAll summarizes every coordinate, preserving input order. Only
// cancellation of ctx returns an error; fetch failures are reported per
// summary.
func (a *Aggregator) SummarizeAll(ctx context.Context, coords []geo.Coordinate) ([]model.AmenitySummary, error) {
	out := make([]model.AmenitySummary, len(coords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range coords {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = a.Summarize(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "enrich: summarize listings")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "enrich: summarize listings")
	}

	failed := 0
	for _, s := range out {
		if s.Status == model.SummaryFetchFailed {
			failed++
		}
	}
	zap.L().Info("enrich: summarized listings",
		zap.Int("listings", len(coords)),
		zap.Int("fetch_failed", failed),
		zap.Int("cache_entries", a.cache.Len()),
	)
	return out, nil
}
