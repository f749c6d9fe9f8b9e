package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO batches`).
		WithArgs(pgxmock.AnyArg(), "running", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	b, err := s.CreateBatch(context.Background(), 25)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BatchStatusRunning, b.Status)
	assert.Equal(t, 25, b.Progress.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	progress, err := json.Marshal(model.BatchProgress{Total: 10, Processed: 4})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, status, progress, created_at, updated_at FROM batches WHERE id = \$1`).
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "progress", "created_at", "updated_at"}).
			AddRow("batch-1", "running", progress, now, now))

	b, err := s.GetBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, model.BatchStatusRunning, b.Status)
	assert.Equal(t, 4, b.Progress.Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, progress, created_at, updated_at FROM batches`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBatch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBatchProgress_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE batches SET progress`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBatchProgress(context.Background(), "missing", model.BatchProgress{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE batches SET status`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "batch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FinishBatch(context.Background(), "batch-1", model.BatchStatusComplete,
		model.BatchProgress{Total: 5, Processed: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendResults_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(batch_id, position\) DO UPDATE`).
		WithArgs("batch-1", 3, "l4", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(batch_id, position\) DO UPDATE`).
		WithArgs("batch-1", 4, "l5", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	results := []*model.EnrichmentResult{
		model.NewEnrichmentResult(model.LeadRecord{ID: "l4"}),
		model.NewEnrichmentResult(model.LeadRecord{ID: "l5"}),
	}
	err := s.AppendResults(context.Background(), "batch-1", 3, results)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r := model.NewEnrichmentResult(model.LeadRecord{ID: "l1"})
	r.SetPhone("3035551234")
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT result FROM batch_results WHERE batch_id = \$1 ORDER BY position`).
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(raw))

	results, err := s.GetResults(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "l1", results[0].Lead.ID)
	assert.Equal(t, "3035551234", results[0].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ProcessedLeadIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lead_id FROM batch_results WHERE batch_id = \$1`).
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{"lead_id"}).AddRow("l1").AddRow("l2"))

	done, err := s.ProcessedLeadIDs(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"l1": true, "l2": true}, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBatches_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	progress, err := json.Marshal(model.BatchProgress{Total: 3, Processed: 3})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, status, progress, created_at, updated_at FROM batches WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("complete", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "progress", "created_at", "updated_at"}).
			AddRow("batch-1", "complete", progress, now, now))

	batches, err := s.ListBatches(context.Background(), BatchFilter{
		Status: model.BatchStatusComplete,
		Limit:  5,
	})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchStatusComplete, batches[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
