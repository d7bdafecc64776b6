package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipeline-import/internal/db"
	"github.com/sells-group/pipeline-import/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name             TEXT NOT NULL UNIQUE,
	vertical         TEXT NOT NULL,
	website          TEXT,
	sales_owner      TEXT,
	sales_stage      TEXT,
	deal_value       DOUBLE PRECISION,
	next_step        TEXT,
	parent_client_id TEXT REFERENCES clients(id),
	source           TEXT NOT NULL DEFAULT 'manual',
	last_imported_at TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sales_tasks (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	title         TEXT NOT NULL,
	due_date      TIMESTAMPTZ,
	due_date_text TEXT,
	priority      TEXT NOT NULL,
	is_overdue    BOOLEAN NOT NULL DEFAULT false,
	owner         TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'open',
	source        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sales_tasks_client_id ON sales_tasks(client_id);

CREATE TABLE IF NOT EXISTS sales_report_imports (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	report_date     TIMESTAMPTZ NOT NULL,
	parsing_method  TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	deals_total     INTEGER NOT NULL DEFAULT 0,
	deals_imported  INTEGER NOT NULL DEFAULT 0,
	clients_created INTEGER NOT NULL DEFAULT 0,
	clients_updated INTEGER NOT NULL DEFAULT 0,
	deals_skipped   INTEGER NOT NULL DEFAULT 0,
	tasks_created   INTEGER NOT NULL DEFAULT 0,
	raw_extraction  JSONB,
	errors          JSONB NOT NULL DEFAULT '[]',
	warnings        JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sales_report_imports_created_at ON sales_report_imports(created_at DESC);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list clients")
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "postgres: list clients iterate")
}

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return pgGetClient(ctx, s.pool, id)
}

// UpsertClients bulk-loads registry rows keyed on client name. Existing
// clients keep their id and pipeline fields; vertical and website are
// refreshed.
func (s *PostgresStore) UpsertClients(ctx context.Context, clients []model.Client) (int64, error) {
	clients = dedupeClients(clients)
	rows := make([]db.ClientRow, 0, len(clients))
	for i := range clients {
		c := &clients[i]
		prepareClient(c)
		rows = append(rows, db.ClientRow{
			ID:        c.ID,
			Name:      c.Name,
			Vertical:  c.Vertical,
			Website:   c.Website,
			Source:    string(c.Source),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	res, err := db.LoadClients(ctx, s.pool, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert clients")
	}
	zap.L().Debug("postgres: client registry loaded",
		zap.Int64("inserted", res.Inserted),
		zap.Int64("refreshed", res.Refreshed),
	)
	return res.Total(), nil
}

// ListTasks returns the tasks linked to a client, oldest first.
func (s *PostgresStore) ListTasks(ctx context.Context, clientID string) ([]model.SalesTask, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM sales_tasks WHERE client_id = $1 ORDER BY created_at, id`,
		clientID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	tasks := []model.SalesTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, *task)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

func (s *PostgresStore) ListImports(ctx context.Context, filter ImportFilter) ([]model.SalesReportImport, int, error) {
	filter = filter.Normalize()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM sales_report_imports`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count imports")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+importColumns+` FROM sales_report_imports ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	imports := []model.SalesReportImport{}
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan import")
		}
		imports = append(imports, *imp)
	}
	return imports, total, eris.Wrap(rows.Err(), "postgres: list imports iterate")
}

func (s *PostgresStore) GetImport(ctx context.Context, id string) (*model.SalesReportImport, error) {
	imp, err := scanImport(s.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM sales_report_imports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: import %s", id)
	}
	return imp, eris.Wrapf(err, "postgres: get import %s", id)
}

// WithTx runs fn in one transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &TxError{Err: eris.Wrap(err, "postgres: begin tx")}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &TxError{Err: eris.Wrap(err, "postgres: commit tx")}
	}
	return nil
}

// pgTx implements Tx. A nested pgx transaction is a savepoint.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Savepoint(ctx context.Context, fn func(tx Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return &TxError{Err: eris.Wrap(err, "postgres: savepoint")}
	}
	if err := fn(&pgTx{tx: sp}); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return &TxError{Err: eris.Wrap(rbErr, "postgres: rollback to savepoint")}
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return &TxError{Err: eris.Wrap(err, "postgres: release savepoint")}
	}
	return nil
}

func (t *pgTx) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return pgGetClient(ctx, t.tx, id)
}

func (t *pgTx) InsertClient(ctx context.Context, c *model.Client) error {
	prepareClient(c)
	_, err := t.tx.Exec(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Name, c.Vertical, nullString(c.Website), nullString(string(c.SalesOwner)),
		nullStage(c.SalesStage), nullFloat(c.DealValue), nullStringPtr(c.NextStep),
		nullStringPtr(c.ParentClientID), string(c.Source), nullTime(c.LastImportedAt),
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert client %q", c.Name)
}

func (t *pgTx) UpdateClientPipeline(ctx context.Context, id string, u model.PipelineUpdate) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE clients SET
			sales_owner = COALESCE($1, sales_owner),
			sales_stage = COALESCE($2, sales_stage),
			deal_value = COALESCE($3, deal_value),
			next_step = COALESCE($4, next_step),
			parent_client_id = COALESCE($5, parent_client_id),
			last_imported_at = $6,
			updated_at = $6
		WHERE id = $7`,
		nullString(string(u.SalesOwner)), nullStage(u.SalesStage), nullFloat(u.DealValue),
		nullStringPtr(u.NextStep), nullStringPtr(u.ParentClientID), u.ImportedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update client %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: client %s", id)
	}
	return nil
}

func (t *pgTx) InsertTask(ctx context.Context, task *model.SalesTask) error {
	prepareTask(task)
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sales_tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.ClientID, task.Title, nullTime(task.DueDate), nullString(task.DueDateText),
		string(task.Priority), task.IsOverdue, string(task.Owner), string(task.Status),
		string(task.Source), task.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert task for client %s", task.ClientID)
}

func (t *pgTx) InsertImport(ctx context.Context, imp *model.SalesReportImport) error {
	args, err := importArgs(imp)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO sales_report_imports (`+importColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		args...,
	)
	return eris.Wrap(err, "postgres: insert import")
}

func pgGetClient(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id string) (*model.Client, error) {
	c, err := scanClient(q.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: client %s", id)
	}
	return c, eris.Wrapf(err, "postgres: get client %s", id)
}
