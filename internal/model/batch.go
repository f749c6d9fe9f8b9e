package model

import "time"

// BatchStatus represents the current state of a batch run.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusComplete  BatchStatus = "complete"
	BatchStatusCancelled BatchStatus = "cancelled"
	BatchStatusFailed    BatchStatus = "failed"
)

// Batch is a persisted batch run: its identity, lifecycle status, and the
// progress counters flushed alongside the incremental results.
type Batch struct {
	ID        string        `json:"id"`
	Status    BatchStatus   `json:"status"`
	Progress  BatchProgress `json:"progress"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BatchProgress tracks aggregate counts across a batch. It is updated after
// every record and flushed to the store at a fixed cadence, so a crash
// mid-batch loses at most the last unflushed window.
type BatchProgress struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	WithPhone  int `json:"with_phone"`
	Complete   int `json:"complete"`
	WithErrors int `json:"with_errors"`
	DoNotCall  int `json:"do_not_call"`
}

// Observe folds one finished record into the counters.
func (p *BatchProgress) Observe(r *EnrichmentResult) {
	p.Processed++
	if r.HasPhone() {
		p.WithPhone++
	}
	if r.Complete() {
		p.Complete++
	}
	if len(r.StageErrors) > 0 {
		p.WithErrors++
	}
	if r.DoNotCall != nil && *r.DoNotCall {
		p.DoNotCall++
	}
}

// BatchSummary is the final report returned by the batch runner.
type BatchSummary struct {
	BatchID    string        `json:"batch_id"`
	Progress   BatchProgress `json:"progress"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Cancelled  bool          `json:"cancelled"`
}
