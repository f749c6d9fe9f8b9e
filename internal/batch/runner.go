// Package batch iterates a collection of leads through the enrichment
// pipeline, flushing incremental results to durable storage so an
// interrupted run loses at most the last unflushed window.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/store"
)

// DefaultFlushEvery is the number of records between durable flushes.
const DefaultFlushEvery = 5

// Runner processes leads sequentially through the pipeline. Sequential is
// deliberate: the binding constraint is per-provider rate limits, not CPU.
// The pipeline's shared throttle and token cache are concurrency-safe, so
// parallel workers can share one Runner's dependencies later without a
// redesign.
type Runner struct {
	pipeline   *pipeline.Pipeline
	store      store.Store
	flushEvery int
	resumeID   string
}

// Option configures the runner.
type Option func(*Runner)

// WithFlushEvery overrides the flush cadence.
func WithFlushEvery(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.flushEvery = n
		}
	}
}

// WithResume continues a previously interrupted batch: leads whose results
// are already stored are skipped and new results append after them.
func WithResume(batchID string) Option {
	return func(r *Runner) { r.resumeID = batchID }
}

// NewRunner creates a batch runner.
func NewRunner(p *pipeline.Pipeline, st store.Store, opts ...Option) *Runner {
	r := &Runner{
		pipeline:   p,
		store:      st,
		flushEvery: DefaultFlushEvery,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run feeds each lead through the pipeline in input order. Cancellation is
// checked between records — an in-flight record finishes so its partial
// result is not lost. Only a durable-storage failure aborts the batch.
func (r *Runner) Run(ctx context.Context, leads []model.LeadRecord, onEvent model.EventFunc) (*model.BatchSummary, error) {
	started := time.Now().UTC()

	batchRec, skipDone, startPos, err := r.openBatch(ctx, len(leads))
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("batch", batchRec.ID))
	log.Info("batch: starting",
		zap.Int("leads", len(leads)),
		zap.Int("flush_every", r.flushEvery),
		zap.Int("already_processed", len(skipDone)),
	)

	progress := batchRec.Progress
	pending := make([]*model.EnrichmentResult, 0, r.flushEvery)
	flushedPos := startPos
	cancelled := false

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		// Detached from cancellation: a cancelled batch must still land
		// its final window.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := r.store.AppendResults(fctx, batchRec.ID, flushedPos, pending); err != nil {
			return eris.Wrap(err, "batch: flush results")
		}
		if err := r.store.UpdateBatchProgress(fctx, batchRec.ID, progress); err != nil {
			return eris.Wrap(err, "batch: flush progress")
		}
		flushedPos += len(pending)
		pending = pending[:0]
		return nil
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if skipDone[lead.ID] {
			continue
		}

		// The record context is detached from batch cancellation so an
		// in-flight record can finish and keep its partial result.
		result, runErr := r.pipeline.Run(context.WithoutCancel(ctx), lead, onEvent)
		if runErr != nil {
			log.Warn("batch: record interrupted", zap.String("lead", lead.ID), zap.Error(runErr))
		}
		if result == nil {
			continue
		}

		progress.Observe(result)
		pending = append(pending, result)

		if len(pending) >= r.flushEvery {
			if err := flush(); err != nil {
				r.finish(batchRec.ID, model.BatchStatusFailed, progress)
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		r.finish(batchRec.ID, model.BatchStatusFailed, progress)
		return nil, err
	}

	status := model.BatchStatusComplete
	if cancelled {
		status = model.BatchStatusCancelled
	}
	r.finish(batchRec.ID, status, progress)

	summary := &model.BatchSummary{
		BatchID:    batchRec.ID,
		Progress:   progress,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Cancelled:  cancelled,
	}
	log.Info("batch: finished",
		zap.Int("processed", progress.Processed),
		zap.Int("with_phone", progress.WithPhone),
		zap.Int("complete", progress.Complete),
		zap.Int("with_errors", progress.WithErrors),
		zap.Bool("cancelled", cancelled),
	)
	return summary, nil
}

// openBatch creates a new batch record, or reloads an existing one when
// resuming.
func (r *Runner) openBatch(ctx context.Context, total int) (*model.Batch, map[string]bool, int, error) {
	if r.resumeID == "" {
		b, err := r.store.CreateBatch(ctx, total)
		if err != nil {
			return nil, nil, 0, eris.Wrap(err, "batch: create")
		}
		return b, map[string]bool{}, 0, nil
	}

	b, err := r.store.GetBatch(ctx, r.resumeID)
	if err != nil {
		return nil, nil, 0, eris.Wrapf(err, "batch: load %s for resume", r.resumeID)
	}
	done, err := r.store.ProcessedLeadIDs(ctx, r.resumeID)
	if err != nil {
		return nil, nil, 0, eris.Wrapf(err, "batch: processed leads %s", r.resumeID)
	}
	return b, done, len(done), nil
}

// finish records the terminal batch status; storage being unreachable at
// this point is logged, not fatal — the results are already flushed.
func (r *Runner) finish(batchID string, status model.BatchStatus, progress model.BatchProgress) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.FinishBatch(ctx, batchID, status, progress); err != nil {
		zap.L().Warn("batch: failed to record final status",
			zap.String("batch", batchID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
