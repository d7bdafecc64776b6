// Package store persists the client registry, sales tasks, and import
// audit rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/pipeline-import/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ImportFilter specifies paging for the import history.
type ImportFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

const (
	defaultImportLimit = 20
	maxImportLimit     = 100
)

// Normalize clamps the filter to valid paging values.
func (f ImportFilter) Normalize() ImportFilter {
	if f.Limit <= 0 {
		f.Limit = defaultImportLimit
	}
	if f.Limit > maxImportLimit {
		f.Limit = maxImportLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store defines the persistence interface for report imports.
type Store interface {
	// Clients
	ListClients(ctx context.Context) ([]model.Client, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	UpsertClients(ctx context.Context, clients []model.Client) (int64, error)
	ListTasks(ctx context.Context, clientID string) ([]model.SalesTask, error)

	// Import history
	ListImports(ctx context.Context, filter ImportFilter) ([]model.SalesReportImport, int, error)
	GetImport(ctx context.Context, id string) (*model.SalesReportImport, error)

	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the write surface of an import transaction.
type Tx interface {
	GetClient(ctx context.Context, id string) (*model.Client, error)
	InsertClient(ctx context.Context, c *model.Client) error
	UpdateClientPipeline(ctx context.Context, id string, u model.PipelineUpdate) error
	InsertTask(ctx context.Context, t *model.SalesTask) error
	InsertImport(ctx context.Context, imp *model.SalesReportImport) error

	// Savepoint runs fn inside a savepoint. When fn fails the savepoint is
	// rolled back, the enclosing transaction stays usable, and fn's error is
	// returned. Failures of the savepoint statements themselves are returned
	// as *TxError.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error
}

// TxError reports a failure of the transaction machinery rather than of
// a statement run inside it. The enclosing transaction cannot continue.
type TxError struct {
	Err error
}

func (e *TxError) Error() string { return e.Err.Error() }

func (e *TxError) Unwrap() error { return e.Err }

// IsTxError reports whether err carries a *TxError.
func IsTxError(err error) bool {
	var te *TxError
	return errors.As(err, &te)
}

type scannable interface {
	Scan(dest ...any) error
}

const clientColumns = `id, name, vertical, website, sales_owner, sales_stage, deal_value, next_step, parent_client_id, source, last_imported_at, created_at, updated_at`

// scanClient reads a clientColumns row. Nullable columns go through the
// database/sql null types, which both pgx and database/sql can scan into.
func scanClient(row scannable) (*model.Client, error) {
	var (
		c                                   model.Client
		website, owner, stage, next, parent sql.NullString
		value                               sql.NullFloat64
		imported                            sql.NullTime
		source                              string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Vertical, &website, &owner, &stage, &value,
		&next, &parent, &source, &imported, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Website = website.String
	c.SalesOwner = model.SalesOwner(owner.String)
	c.Source = model.ClientSource(source)
	if stage.Valid {
		st := model.SalesStage(stage.String)
		c.SalesStage = &st
	}
	if value.Valid {
		c.DealValue = &value.Float64
	}
	if next.Valid {
		c.NextStep = &next.String
	}
	if parent.Valid {
		c.ParentClientID = &parent.String
	}
	if imported.Valid {
		t := imported.Time
		c.LastImportedAt = &t
	}
	return &c, nil
}

const taskColumns = `id, client_id, title, due_date, due_date_text, priority, is_overdue, owner, status, source, created_at`

func scanTask(row scannable) (*model.SalesTask, error) {
	var (
		task                            model.SalesTask
		due                             sql.NullTime
		dueText                         sql.NullString
		priority, owner, status, source string
	)
	if err := row.Scan(&task.ID, &task.ClientID, &task.Title, &due, &dueText, &priority,
		&task.IsOverdue, &owner, &status, &source, &task.CreatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		t := due.Time
		task.DueDate = &t
	}
	task.DueDateText = dueText.String
	task.Priority = model.TaskPriority(priority)
	task.Owner = model.SalesOwner(owner)
	task.Status = model.TaskStatus(status)
	task.Source = model.ClientSource(source)
	return &task, nil
}

const importColumns = `id, file_name, report_date, parsing_method, state, deals_total, deals_imported, clients_created, clients_updated, deals_skipped, tasks_created, raw_extraction, errors, warnings, created_at`

func scanImport(row scannable) (*model.SalesReportImport, error) {
	var (
		imp                 model.SalesReportImport
		method, state       string
		raw, errs, warnings []byte
	)
	if err := row.Scan(&imp.ID, &imp.FileName, &imp.ReportDate, &method, &state,
		&imp.DealsTotal, &imp.DealsImported, &imp.ClientsCreated, &imp.ClientsUpdated,
		&imp.DealsSkipped, &imp.TasksCreated, &raw, &errs, &warnings, &imp.CreatedAt); err != nil {
		return nil, err
	}
	imp.ParsingMethod = model.ParsingMethod(method)
	imp.State = model.ImportState(state)
	imp.RawExtraction = decodeRaw(raw)

	var err error
	if imp.Errors, err = decodeStrings(errs); err != nil {
		return nil, err
	}
	if imp.Warnings, err = decodeStrings(warnings); err != nil {
		return nil, err
	}
	return &imp, nil
}

// importArgs returns the insert arguments for an audit row in importColumns
// order.
func importArgs(imp *model.SalesReportImport) ([]any, error) {
	raw, err := encodeRaw(imp.RawExtraction)
	if err != nil {
		return nil, err
	}
	errs, err := encodeStrings(imp.Errors)
	if err != nil {
		return nil, err
	}
	warnings, err := encodeStrings(imp.Warnings)
	if err != nil {
		return nil, err
	}
	return []any{
		imp.ID, imp.FileName, imp.ReportDate, string(imp.ParsingMethod), string(imp.State),
		imp.DealsTotal, imp.DealsImported, imp.ClientsCreated, imp.ClientsUpdated,
		imp.DealsSkipped, imp.TasksCreated, raw, errs, warnings, imp.CreatedAt,
	}, nil
}

// prepareClient fills the id and timestamps of a new client row.
func prepareClient(c *model.Client) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Source == "" {
		c.Source = model.SourceManual
	}
}

// prepareTask fills the id, status, and timestamp of a new task row.
func prepareTask(t *model.SalesTask) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TaskOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
}

// dedupeClients keeps the last row for each client name.
func dedupeClients(clients []model.Client) []model.Client {
	idx := make(map[string]int, len(clients))
	out := make([]model.Client, 0, len(clients))
	for _, c := range clients {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if i, ok := idx[c.Name]; ok {
			out[i] = c
			continue
		}
		idx[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStage(s *model.SalesStage) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
