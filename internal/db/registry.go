package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ClientRow is one client registry row staged for LoadClients.
type ClientRow struct {
	ID        string
	Name      string
	Vertical  string
	Website   string // empty loads as NULL
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoadResult splits a registry load into new and refreshed clients.
type LoadResult struct {
	Inserted  int64
	Refreshed int64
}

// Total is the number of client rows written.
func (r LoadResult) Total() int64 { return r.Inserted + r.Refreshed }

const registryStage = "_client_registry_load"

var registryColumns = []string{"id", "name", "vertical", "website", "source", "created_at", "updated_at"}

// An existing client keeps its id, source, and pipeline fields; only the
// registry attributes are refreshed. xmax is zero on freshly inserted tuples.
const registryMergeSQL = `INSERT INTO clients (id, name, vertical, website, source, created_at, updated_at)
SELECT id, name, vertical, website, source, created_at, updated_at FROM ` + registryStage + `
ON CONFLICT (name) DO UPDATE SET
	vertical = EXCLUDED.vertical,
	website = EXCLUDED.website,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`

// LoadClients COPYs registry rows into a transaction-scoped staging table
// and merges them into clients keyed on name. Names must be unique within
// rows; Postgres rejects a merge that touches the same name twice.
func LoadClients(ctx context.Context, pool Pool, rows []ClientRow) (LoadResult, error) {
	var res LoadResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "db: load clients: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE TEMP TABLE "+registryStage+" (LIKE clients INCLUDING DEFAULTS) ON COMMIT DROP"); err != nil {
		return res, eris.Wrap(err, "db: load clients: create staging table")
	}

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		var website any
		if r.Website != "" {
			website = r.Website
		}
		return []any{r.ID, r.Name, r.Vertical, website, r.Source, r.CreatedAt, r.UpdatedAt}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{registryStage}, registryColumns, src); err != nil {
		return res, eris.Wrap(err, "db: load clients: COPY into staging table")
	}

	merged, err := tx.Query(ctx, registryMergeSQL)
	if err != nil {
		return res, eris.Wrap(err, "db: load clients: merge")
	}
	for merged.Next() {
		var inserted bool
		if err := merged.Scan(&inserted); err != nil {
			merged.Close()
			return res, eris.Wrap(err, "db: load clients: scan merge result")
		}
		if inserted {
			res.Inserted++
		} else {
			res.Refreshed++
		}
	}
	merged.Close()
	if err := merged.Err(); err != nil {
		return LoadResult{}, eris.Wrap(err, "db: load clients: merge")
	}

	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, eris.Wrap(err, "db: load clients: commit tx")
	}
	return res, nil
}
