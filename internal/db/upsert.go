package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// maxParams is Postgres' bind parameter limit per statement.
const maxParams = 65535

// UpsertConfig defines the parameters for a multi-row upsert.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
}

func (cfg UpsertConfig) validate() error {
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (cfg UpsertConfig) updateColumns() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		conflictSet[k] = true
	}
	var cols []string
	for _, c := range cfg.Columns {
		if !conflictSet[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// BuildUpsertSQL renders INSERT ... VALUES ($1..), ... ON CONFLICT ... DO UPDATE
// for rowCount rows.
func BuildUpsertSQL(cfg UpsertConfig, rowCount int) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	if rowCount <= 0 {
		return "", eris.New("db: upsert: row count must be positive")
	}

	width := len(cfg.Columns)
	tuples := make([]string, rowCount)
	for r := 0; r < rowCount; r++ {
		ph := make([]string, width)
		for c := 0; c < width; c++ {
			ph[c] = fmt.Sprintf("$%d", r*width+c+1)
		}
		tuples[r] = "(" + strings.Join(ph, ", ") + ")"
	}

	var action string
	if updateCols := cfg.updateColumns(); len(updateCols) == 0 {
		action = "DO NOTHING"
	} else {
		setClauses := make([]string, len(updateCols))
		for i, col := range updateCols {
			id := pgx.Identifier{col}.Sanitize()
			setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		}
		action = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(tuples, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		action,
	), nil
}

// Upsert writes rows in as few statements as the bind parameter limit allows.
// Callers wanting atomicity pass a transaction as ex.
func Upsert(ctx context.Context, ex Execer, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	width := len(cfg.Columns)
	chunk := maxParams / width
	var affected int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		batch := rows[start:end]

		sql, err := BuildUpsertSQL(cfg, len(batch))
		if err != nil {
			return affected, err
		}
		args := make([]any, 0, len(batch)*width)
		for i, row := range batch {
			if len(row) != width {
				return affected, eris.Errorf("db: upsert: row %d has %d values, want %d", start+i, len(row), width)
			}
			args = append(args, row...)
		}

		tag, err := ex.Exec(ctx, sql, args...)
		if err != nil {
			return affected, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// sanitizeTable handles schema-qualified table names like "public.amenity_cache".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
