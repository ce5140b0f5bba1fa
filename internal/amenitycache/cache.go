// Package amenitycache keeps the coordinate-keyed amenity cache in memory
// and persists it through a pluggable Backend.
//
// Entries never expire. A key that has been populated is never refetched,
// including keys whose amenity list is empty.
package amenitycache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mmcloughlin/geohash"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// GeohashPrecision is the cell size recorded alongside persisted entries
// (7 characters, roughly 150 m).
const GeohashPrecision = 7

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is a concurrency-safe map from rounded coordinate to amenity list.
type Cache struct {
	backend Backend

	mu      sync.RWMutex
	entries map[geo.Key][]model.Amenity

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty cache persisted through backend. A nil backend keeps
// the cache memory-only.
func New(backend Backend) *Cache {
	return &Cache{
		backend: backend,
		entries: make(map[geo.Key][]model.Amenity),
	}
}

// Load replaces the in-memory contents with what the backend holds.
func (c *Cache) Load(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	entries, err := c.backend.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "amenitycache: load")
	}
	if entries == nil {
		entries = make(map[geo.Key][]model.Amenity)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	zap.L().Info("amenitycache: loaded", zap.Int("entries", len(entries)))
	return nil
}

// Save writes a snapshot of every entry to the backend.
func (c *Cache) Save(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	snapshot := c.snapshot()
	if err := c.backend.Save(ctx, snapshot); err != nil {
		return eris.Wrap(err, "amenitycache: save")
	}
	zap.L().Info("amenitycache: saved", zap.Int("entries", len(snapshot)))
	return nil
}

// Get returns a copy of the amenities cached under key.
func (c *Cache) Get(key geo.Key) ([]model.Amenity, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	out := make([]model.Amenity, len(v))
	copy(out, v)
	return out, true
}

// Peek is Get without touching the hit and miss counters.
func (c *Cache) Peek(key geo.Key) ([]model.Amenity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]model.Amenity, len(v))
	copy(out, v)
	return out, true
}

// Put stores amenities under key, overwriting any previous entry.
func (c *Cache) Put(key geo.Key, amenities []model.Amenity) {
	stored := make([]model.Amenity, len(amenities))
	copy(stored, amenities)

	c.mu.Lock()
	c.entries[key] = stored
	c.mu.Unlock()
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys ordered by latitude then longitude.
func (c *Cache) Keys() []geo.Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.entries)
}

// Stats reports hit and miss counts since creation.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Coverage counts cached keys per geohash cell of the given precision.
func (c *Cache) Coverage(precision uint) map[string]int {
	if precision == 0 {
		precision = GeohashPrecision
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int)
	for k := range c.entries {
		out[geohash.EncodeWithPrecision(k.Lat, k.Lon, precision)]++
	}
	return out
}

func (c *Cache) snapshot() map[geo.Key][]model.Amenity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[geo.Key][]model.Amenity, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

func cellOf(k geo.Key) string {
	return geohash.EncodeWithPrecision(k.Lat, k.Lon, GeohashPrecision)
}
