package store

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
)

// BatchFilter specifies criteria for listing batches.
type BatchFilter struct {
	Status model.BatchStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs. The batch runner
// flushes incremental results through AppendResults at a fixed cadence;
// AppendResults is idempotent per (batch, position) so re-flushing an
// overlapping window after a resume cannot duplicate records.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, total int) (*model.Batch, error)
	UpdateBatchProgress(ctx context.Context, batchID string, progress model.BatchProgress) error
	FinishBatch(ctx context.Context, batchID string, status model.BatchStatus, progress model.BatchProgress) error
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error)

	// Results
	AppendResults(ctx context.Context, batchID string, startPos int, results []*model.EnrichmentResult) error
	GetResults(ctx context.Context, batchID string) ([]*model.EnrichmentResult, error)
	ProcessedLeadIDs(ctx context.Context, batchID string) (map[string]bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
