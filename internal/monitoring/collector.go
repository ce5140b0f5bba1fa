package monitoring

import (
	"time"

	"github.com/sells-group/homescore/internal/amenitycache"
	"github.com/sells-group/homescore/internal/resilience"
)

// Snapshot is a point-in-time view of cache and upstream health.
type Snapshot struct {
	CacheEntries int     `json:"cache_entries"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// BreakerState is "disabled" when no breaker is configured.
	BreakerState string `json:"breaker_state"`

	CollectedAt time.Time `json:"collected_at"`
}

// CacheStater abstracts the cache statistics needed by the collector.
type CacheStater interface {
	Stats() amenitycache.Stats
}

// Collector builds snapshots from the live cache and breaker.
type Collector struct {
	cache   CacheStater
	breaker *resilience.Breaker
}

// NewCollector creates a collector. breaker may be nil.
func NewCollector(cache CacheStater, breaker *resilience.Breaker) *Collector {
	return &Collector{cache: cache, breaker: breaker}
}

// Collect returns the current snapshot.
func (c *Collector) Collect() Snapshot {
	snap := Snapshot{
		BreakerState: "disabled",
		CollectedAt:  time.Now().UTC(),
	}
	if c.cache != nil {
		st := c.cache.Stats()
		snap.CacheEntries = st.Entries
		snap.CacheHits = st.Hits
		snap.CacheMisses = st.Misses
		if lookups := st.Hits + st.Misses; lookups > 0 {
			snap.CacheHitRate = float64(st.Hits) / float64(lookups)
		}
	}
	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
	}
	return snap
}
