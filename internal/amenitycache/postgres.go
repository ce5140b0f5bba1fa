package amenitycache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homescore/internal/db"
	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// PostgresBackend stores one row per cache key in Postgres.
type PostgresBackend struct {
	pool db.Pool
}

// NewPostgresBackend wraps an open pool.
func NewPostgresBackend(pool db.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS amenity_cache (
	cache_key TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	geohash   TEXT NOT NULL,
	amenities JSONB NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_amenity_cache_geohash ON amenity_cache(geohash);
`

var cacheUpsert = db.UpsertConfig{
	Table:        "amenity_cache",
	Columns:      []string{"cache_key", "lat", "lon", "geohash", "amenities", "cached_at"},
	ConflictKeys: []string{"cache_key"},
	UpdateCols:   []string{"amenities", "cached_at"},
}

// Migrate creates the cache table if needed.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) (map[geo.Key][]model.Amenity, error) {
	rows, err := b.pool.Query(ctx, `SELECT cache_key, amenities FROM amenity_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query amenity cache")
	}
	defer rows.Close()

	out := make(map[geo.Key][]model.Amenity)
	for rows.Next() {
		var text string
		var raw []byte
		if err := rows.Scan(&text, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan amenity cache")
		}
		key, err := geo.ParseKey(text)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: entry %q", text)
		}
		amenities, err := decodeAmenities(text, raw)
		if err != nil {
			return nil, err
		}
		out[key] = amenities
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate amenity cache")
}

// Save implements Backend. Every entry is upserted in one transaction.
func (b *PostgresBackend) Save(ctx context.Context, entries map[geo.Key][]model.Amenity) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, key := range sortedKeys(entries) {
		raw, err := encodeAmenities(entries[key])
		if err != nil {
			return err
		}
		rows = append(rows, []any{key.String(), key.Lat, key.Lon, cellOf(key), raw, now})
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := db.Upsert(ctx, tx, cacheUpsert, rows); err != nil {
		return eris.Wrap(err, "postgres: upsert amenity cache")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}
