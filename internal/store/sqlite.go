package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	progress   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS batch_results (
	batch_id  TEXT NOT NULL REFERENCES batches(id),
	position  INTEGER NOT NULL,
	lead_id   TEXT NOT NULL,
	result    TEXT NOT NULL,
	saved_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batch_results_lead ON batch_results(batch_id, lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, total int) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	progress := model.BatchProgress{Total: total}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal progress")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, status, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.BatchStatusRunning), string(progressJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.Batch{
		ID:        id,
		Status:    model.BatchStatusRunning,
		Progress:  progress,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateBatchProgress(ctx context.Context, batchID string, progress model.BatchProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch progress %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) FinishBatch(ctx context.Context, batchID string, status model.BatchStatus, progress model.BatchProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, progress = ?, updated_at = ? WHERE id = ?`,
		string(status), string(progressJSON), time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish batch %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, progress, created_at, updated_at FROM batches WHERE id = ?`,
		batchID,
	)
	return scanBatch(row)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	query := `SELECT id, status, progress, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

func (s *SQLiteStore) AppendResults(ctx context.Context, batchID string, startPos int, results []*model.EnrichmentResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback() //nolint:errcheck

	for i, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batch_results (batch_id, position, lead_id, result, saved_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (batch_id, position) DO UPDATE SET result = excluded.result, saved_at = excluded.saved_at`,
			batchID, startPos+i, r.Lead.ID, string(resultJSON), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result %d", startPos+i)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit append")
}

func (s *SQLiteStore) GetResults(ctx context.Context, batchID string) ([]*model.EnrichmentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM batch_results WHERE batch_id = ? ORDER BY position`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results %s", batchID)
	}
	defer rows.Close()

	var results []*model.EnrichmentResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.EnrichmentResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		results = append(results, &r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) ProcessedLeadIDs(ctx context.Context, batchID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lead_id FROM batch_results WHERE batch_id = ?`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: processed leads %s", batchID)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate lead ids")
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanBatch.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var b model.Batch
	var status, progressRaw string
	if err := row.Scan(&b.ID, &status, &progressRaw, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: batch not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan batch")
	}
	b.Status = model.BatchStatus(status)
	if err := json.Unmarshal([]byte(progressRaw), &b.Progress); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal progress")
	}
	return &b, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
