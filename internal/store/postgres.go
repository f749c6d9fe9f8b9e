package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or mock) in a store.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	progress   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batch_results (
	batch_id  TEXT NOT NULL REFERENCES batches(id),
	position  INTEGER NOT NULL,
	lead_id   TEXT NOT NULL,
	result    JSONB NOT NULL,
	saved_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batch_results_lead ON batch_results(batch_id, lead_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, total int) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	progress := model.BatchProgress{Total: total}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal progress")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO batches (id, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.BatchStatusRunning), progressJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch")
	}

	return &model.Batch{
		ID:        id,
		Status:    model.BatchStatusRunning,
		Progress:  progress,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateBatchProgress(ctx context.Context, batchID string, progress model.BatchProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET progress = $1, updated_at = $2 WHERE id = $3`,
		progressJSON, time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch progress %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: batch %s not found", batchID)
	}
	return nil
}

func (s *PostgresStore) FinishBatch(ctx context.Context, batchID string, status model.BatchStatus, progress model.BatchProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET status = $1, progress = $2, updated_at = $3 WHERE id = $4`,
		string(status), progressJSON, time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: batch %s not found", batchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, progress, created_at, updated_at FROM batches WHERE id = $1`,
		batchID,
	)
	return scanPgBatch(row)
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	query := `SELECT id, status, progress, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanPgBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: iterate batches")
}

func (s *PostgresStore) AppendResults(ctx context.Context, batchID string, startPos int, results []*model.EnrichmentResult) error {
	for i, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO batch_results (batch_id, position, lead_id, result, saved_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (batch_id, position) DO UPDATE SET result = EXCLUDED.result, saved_at = EXCLUDED.saved_at`,
			batchID, startPos+i, r.Lead.ID, resultJSON, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert result %d", startPos+i)
		}
	}
	return nil
}

func (s *PostgresStore) GetResults(ctx context.Context, batchID string) ([]*model.EnrichmentResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM batch_results WHERE batch_id = $1 ORDER BY position`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get results %s", batchID)
	}
	defer rows.Close()

	var results []*model.EnrichmentResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var r model.EnrichmentResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		results = append(results, &r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate results")
}

func (s *PostgresStore) ProcessedLeadIDs(ctx context.Context, batchID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT lead_id FROM batch_results WHERE batch_id = $1`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: processed leads %s", batchID)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate lead ids")
}

func scanPgBatch(row pgx.Row) (*model.Batch, error) {
	var b model.Batch
	var status string
	var progressRaw []byte
	if err := row.Scan(&b.ID, &status, &progressRaw, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "postgres: batch not found")
		}
		return nil, eris.Wrap(err, "postgres: scan batch")
	}
	b.Status = model.BatchStatus(status)
	if err := json.Unmarshal(progressRaw, &b.Progress); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal progress")
	}
	return &b, nil
}
