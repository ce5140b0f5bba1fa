// Package monitoring exposes Prometheus metrics and a periodic status
// checkpoint for the enrichment and scoring pipeline.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCacheLookupsTotal   = "homescore_amenity_cache_lookups_total"
	MetricFetchesTotal        = "homescore_amenity_fetches_total"
	MetricFetchDuration       = "homescore_amenity_fetch_duration_seconds"
	MetricListingsScoredTotal = "homescore_listings_scored_total"
	MetricListingsDropped     = "homescore_listings_dropped_total"
)

// Label values.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"

	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can run without a registry.
type Metrics struct {
	cacheLookups   *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	listingsScored prometheus.Counter
	listingsDrop   prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookupsTotal,
				Help: "Amenity cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFetchesTotal,
				Help: "Amenity index fetches by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricFetchDuration,
				Help:    "Amenity index fetch latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		listingsScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricListingsScoredTotal,
				Help: "Listings that received a score",
			},
		),
		listingsDrop: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricListingsDropped,
				Help: "Listings dropped during normalization for missing features",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.cacheLookups,
		m.fetches,
		m.fetchDuration,
		m.listingsScored,
		m.listingsDrop,
	}
}

// IncCacheLookup counts one cache lookup.
func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveFetch records one index fetch.
func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(seconds)
}

// AddListings records how many listings were scored and dropped in a run.
func (m *Metrics) AddListings(scored, dropped int) {
	if m == nil {
		return
	}
	m.listingsScored.Add(float64(scored))
	m.listingsDrop.Add(float64(dropped))
}
