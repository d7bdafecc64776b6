package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pipeline-import/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. One connection is kept open so pragmas and savepoints apply to every
// statement.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	vertical         TEXT NOT NULL,
	website          TEXT,
	sales_owner      TEXT,
	sales_stage      TEXT,
	deal_value       REAL,
	next_step        TEXT,
	parent_client_id TEXT REFERENCES clients(id),
	source           TEXT NOT NULL DEFAULT 'manual',
	last_imported_at DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sales_tasks (
	id            TEXT PRIMARY KEY,
	client_id     TEXT NOT NULL REFERENCES clients(id),
	title         TEXT NOT NULL,
	due_date      DATETIME,
	due_date_text TEXT,
	priority      TEXT NOT NULL,
	is_overdue    BOOLEAN NOT NULL DEFAULT 0,
	owner         TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'open',
	source        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sales_tasks_client_id ON sales_tasks(client_id);

CREATE TABLE IF NOT EXISTS sales_report_imports (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	report_date     DATETIME NOT NULL,
	parsing_method  TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	deals_total     INTEGER NOT NULL DEFAULT 0,
	deals_imported  INTEGER NOT NULL DEFAULT 0,
	clients_created INTEGER NOT NULL DEFAULT 0,
	clients_updated INTEGER NOT NULL DEFAULT 0,
	deals_skipped   INTEGER NOT NULL DEFAULT 0,
	tasks_created   INTEGER NOT NULL DEFAULT 0,
	raw_extraction  TEXT,
	errors          TEXT NOT NULL DEFAULT '[]',
	warnings        TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sales_report_imports_created_at ON sales_report_imports(created_at);
`

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list clients")
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan client")
		}
		clients = append(clients, *c)
	}
	return clients, eris.Wrap(rows.Err(), "sqlite: list clients iterate")
}

func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return sqliteGetClient(ctx, s.db, id)
}

// UpsertClients loads registry rows keyed on client name in one
// transaction.
func (s *SQLiteStore) UpsertClients(ctx context.Context, clients []model.Client) (int64, error) {
	clients = dedupeClients(clients)
	if len(clients) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for i := range clients {
		c := &clients[i]
		prepareClient(c)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO clients (id, name, vertical, website, source, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET
				vertical = excluded.vertical,
				website = excluded.website,
				updated_at = excluded.updated_at`,
			c.ID, c.Name, c.Vertical, nullString(c.Website), string(c.Source), c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert client %q", c.Name)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) ListImports(ctx context.Context, filter ImportFilter) ([]model.SalesReportImport, int, error) {
	filter = filter.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales_report_imports`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count imports")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importColumns+` FROM sales_report_imports ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close()

	imports := []model.SalesReportImport{}
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan import")
		}
		imports = append(imports, *imp)
	}
	return imports, total, eris.Wrap(rows.Err(), "sqlite: list imports iterate")
}

func (s *SQLiteStore) GetImport(ctx context.Context, id string) (*model.SalesReportImport, error) {
	imp, err := scanImport(s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM sales_report_imports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: import %s", id)
	}
	return imp, eris.Wrapf(err, "sqlite: get import %s", id)
}

// WithTx runs fn in one transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &TxError{Err: eris.Wrap(err, "sqlite: begin tx")}
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &TxError{Err: eris.Wrap(err, "sqlite: commit tx")}
	}
	return nil
}

// sqliteTx implements Tx with explicit SAVEPOINT statements. depth names
// nested savepoints.
type sqliteTx struct {
	tx    *sql.Tx
	depth int
}

func (t *sqliteTx) Savepoint(ctx context.Context, fn func(tx Tx) error) error {
	name := fmt.Sprintf("sp_%d", t.depth+1)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return &TxError{Err: eris.Wrap(err, "sqlite: savepoint")}
	}
	if err := fn(&sqliteTx{tx: t.tx, depth: t.depth + 1}); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return &TxError{Err: eris.Wrap(rbErr, "sqlite: rollback to savepoint")}
		}
		if _, relErr := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return &TxError{Err: eris.Wrap(relErr, "sqlite: release savepoint")}
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return &TxError{Err: eris.Wrap(err, "sqlite: release savepoint")}
	}
	return nil
}

func (t *sqliteTx) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return sqliteGetClient(ctx, t.tx, id)
}

func (t *sqliteTx) InsertClient(ctx context.Context, c *model.Client) error {
	prepareClient(c)
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Vertical, nullString(c.Website), nullString(string(c.SalesOwner)),
		nullStage(c.SalesStage), nullFloat(c.DealValue), nullStringPtr(c.NextStep),
		nullStringPtr(c.ParentClientID), string(c.Source), nullTime(c.LastImportedAt),
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert client %q", c.Name)
}

func (t *sqliteTx) UpdateClientPipeline(ctx context.Context, id string, u model.PipelineUpdate) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE clients SET
			sales_owner = COALESCE(?, sales_owner),
			sales_stage = COALESCE(?, sales_stage),
			deal_value = COALESCE(?, deal_value),
			next_step = COALESCE(?, next_step),
			parent_client_id = COALESCE(?, parent_client_id),
			last_imported_at = ?,
			updated_at = ?
		WHERE id = ?`,
		nullString(string(u.SalesOwner)), nullStage(u.SalesStage), nullFloat(u.DealValue),
		nullStringPtr(u.NextStep), nullStringPtr(u.ParentClientID), u.ImportedAt, u.ImportedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update client %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: client %s", id)
	}
	return nil
}

func (t *sqliteTx) InsertTask(ctx context.Context, task *model.SalesTask) error {
	prepareTask(task)
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO sales_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ClientID, task.Title, nullTime(task.DueDate), nullString(task.DueDateText),
		string(task.Priority), task.IsOverdue, string(task.Owner), string(task.Status),
		string(task.Source), task.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert task for client %s", task.ClientID)
}

func (t *sqliteTx) InsertImport(ctx context.Context, imp *model.SalesReportImport) error {
	args, err := importArgs(imp)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO sales_report_imports (`+importColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return eris.Wrap(err, "sqlite: insert import")
}

func sqliteGetClient(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id string) (*model.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: client %s", id)
	}
	return c, eris.Wrapf(err, "sqlite: get client %s", id)
}

// ListTasks returns the tasks linked to a client, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, clientID string) ([]model.SalesTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM sales_tasks WHERE client_id = ? ORDER BY created_at, rowid`,
		clientID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close()

	tasks := []model.SalesTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task")
		}
		tasks = append(tasks, *task)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}
