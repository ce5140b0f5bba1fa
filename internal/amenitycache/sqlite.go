package amenitycache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// SQLiteBackend stores one row per cache key using modernc.org/sqlite.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens a SQLite database at dsn and configures WAL mode.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS amenity_cache (
	cache_key TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	geohash   TEXT NOT NULL,
	amenities TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_amenity_cache_geohash ON amenity_cache(geohash);
`

// Migrate creates the cache table if needed.
func (b *SQLiteBackend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) (map[geo.Key][]model.Amenity, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT cache_key, amenities FROM amenity_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query amenity cache")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[geo.Key][]model.Amenity)
	for rows.Next() {
		var text, raw string
		if err := rows.Scan(&text, &raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan amenity cache")
		}
		key, err := geo.ParseKey(text)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: entry %q", text)
		}
		amenities, err := decodeAmenities(text, []byte(raw))
		if err != nil {
			return nil, err
		}
		out[key] = amenities
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate amenity cache")
}

// Save implements Backend. Every entry is upserted in one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, entries map[geo.Key][]model.Amenity) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO amenity_cache (cache_key, lat, lon, geohash, amenities, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			amenities = excluded.amenities,
			cached_at = excluded.cached_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, key := range sortedKeys(entries) {
		raw, err := encodeAmenities(entries[key])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key.String(), key.Lat, key.Lon, cellOf(key), string(raw), now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %s", key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}
