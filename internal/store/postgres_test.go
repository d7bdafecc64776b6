package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipeline-import/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var clientColumnNames = []string{"id", "name", "vertical", "website", "sales_owner", "sales_stage",
	"deal_value", "next_step", "parent_client_id", "source", "last_imported_at", "created_at", "updated_at"}

func TestPostgresStore_ListClients(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, vertical, .* FROM clients ORDER BY name`).
		WillReturnRows(pgxmock.NewRows(clientColumnNames).
			AddRow("c1", "Acme", "Retail", nil, nil, nil, nil, nil, nil, "seed", nil, now, now).
			AddRow("c2", "Harbor Foods", "CPG", "harbor.test", "ALEX", "NEGOTIATION", 1200000.0,
				"Send SOW", nil, "sales_report", now, now, now))

	clients, err := s.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, model.SourceSeed, clients[0].Source)
	assert.Nil(t, clients[0].SalesStage)
	assert.Nil(t, clients[0].DealValue)
	assert.Empty(t, clients[0].Website)

	harbor := clients[1]
	assert.Equal(t, model.OwnerAlex, harbor.SalesOwner)
	require.NotNil(t, harbor.SalesStage)
	assert.Equal(t, model.StageNegotiation, *harbor.SalesStage)
	require.NotNil(t, harbor.DealValue)
	assert.InDelta(t, 1200000, *harbor.DealValue, 0.01)
	require.NotNil(t, harbor.LastImportedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetClient_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM clients WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetClient(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetImport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM sales_report_imports WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetImport(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListImports(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM sales_report_imports`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`FROM sales_report_imports ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "file_name", "report_date", "parsing_method", "state",
			"deals_total", "deals_imported", "clients_created", "clients_updated", "deals_skipped",
			"tasks_created", "raw_extraction", "errors", "warnings", "created_at"}).
			AddRow("imp-1", "week.csv", now, "csv-parser", "PARTIAL_FAILURE", 4, 2, 1, 1, 1, 1,
				[]byte(`{"deals":[]}`), []byte(`["Deal \"Acme\": boom"]`), []byte(`[]`), now))

	list, total, err := s.ListImports(context.Background(), ImportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, list, 1)
	assert.Equal(t, model.ImportPartialFailure, list[0].State)
	assert.Equal(t, model.ParsingCSV, list[0].ParsingMethod)
	assert.True(t, list[0].HasErrors())
	assert.Equal(t, []string{}, list[0].Warnings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx_SavepointCommit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO clients`).
		WithArgs(pgxmock.AnyArg(), "Northwind", "Unassigned", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "sales_report",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectCommit()

	var id string
	err := s.WithTx(context.Background(), func(tx Tx) error {
		return tx.Savepoint(context.Background(), func(sp Tx) error {
			c := &model.Client{Name: "Northwind", Vertical: "Unassigned", Source: model.SourceSalesReport}
			err := sp.InsertClient(context.Background(), c)
			id = c.ID
			return err
		})
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Savepoint_RollsBackFailedDeal(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO clients`).WillReturnError(dup)
	mock.ExpectRollback()
	mock.ExpectCommit()

	var spErr error
	err := s.WithTx(context.Background(), func(tx Tx) error {
		spErr = tx.Savepoint(context.Background(), func(sp Tx) error {
			return sp.InsertClient(context.Background(), &model.Client{Name: "Acme", Vertical: "Retail"})
		})
		return nil
	})
	require.NoError(t, err)
	require.Error(t, spErr)
	assert.False(t, IsTxError(spErr))

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(spErr, &pgErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := s.WithTx(context.Background(), func(Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, IsTxError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateClientPipeline_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE clients SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateClientPipeline(context.Background(), "gone", model.PipelineUpdate{ImportedAt: time.Now()})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertImport(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sales_report_imports`).
		WithArgs("imp-1", "week.csv", now, "csv-parser", "COMMITTED", 3, 2, 1, 1, 1, 0,
			"null", `[]`, `["1 deals will be skipped"]`, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		return tx.InsertImport(context.Background(), &model.SalesReportImport{
			ID: "imp-1", FileName: "week.csv", ReportDate: now, ParsingMethod: model.ParsingCSV,
			State: model.ImportCommitted, DealsTotal: 3, DealsImported: 2, ClientsCreated: 1,
			ClientsUpdated: 1, DealsSkipped: 1, Warnings: []string{"1 deals will be skipped"},
			CreatedAt: now,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS clients`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertClients(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _client_registry_load`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_client_registry_load"},
		[]string{"id", "name", "vertical", "website", "source", "created_at", "updated_at"}).
		WillReturnResult(2)
	mock.ExpectQuery(`INSERT INTO clients .* ON CONFLICT \(name\) DO UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true).AddRow(false))
	mock.ExpectCommit()

	n, err := s.UpsertClients(context.Background(), []model.Client{
		{Name: "Harbor Foods", Vertical: "CPG", Source: model.SourceSeed},
		{Name: " ", Vertical: "skipped"},
		{Name: "Acme", Vertical: "Retail"},
		{Name: "Acme", Vertical: "Retail", Website: "acme.test"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertClients_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	n, err := s.UpsertClients(context.Background(), []model.Client{{Name: "  "}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
