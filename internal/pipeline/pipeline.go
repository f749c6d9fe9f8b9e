// Package pipeline sequences the enrichment stages for one lead: local
// normalization, postal resolution, phone discovery, line-type validation,
// the gatekeep checkpoint, the do-not-call check, and the demographic
// lookup. Stage failures degrade the record per field; a lead is never
// failed wholesale because one provider was briefly unavailable.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/auth"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/policy"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/throttle"
	"github.com/sells-group/enrich-cli/pkg/demographic"
	"github.com/sells-group/enrich-cli/pkg/dnc"
	"github.com/sells-group/enrich-cli/pkg/peoplesearch"
	"github.com/sells-group/enrich-cli/pkg/phoneintel"
)

// defaultCallTimeout bounds each external provider call.
const defaultCallTimeout = 30 * time.Second

// Pipeline orchestrates the enrichment stages for a single lead. The
// throttle and token cache are shared across the whole batch and are safe
// for concurrent use.
type Pipeline struct {
	throttle    *throttle.Keyed
	tokens      *auth.Cache
	gate        *policy.Gatekeep
	people      peoplesearch.Client
	phone       phoneintel.Client
	dnc         dnc.Client
	demographic demographic.Client
	callTimeout time.Duration
}

// New creates a Pipeline with all dependencies.
func New(
	kt *throttle.Keyed,
	tokens *auth.Cache,
	gate *policy.Gatekeep,
	people peoplesearch.Client,
	phone phoneintel.Client,
	dncClient dnc.Client,
	demo demographic.Client,
) *Pipeline {
	return &Pipeline{
		throttle:    kt,
		tokens:      tokens,
		gate:        gate,
		people:      people,
		phone:       phone,
		dnc:         dncClient,
		demographic: demo,
		callTimeout: defaultCallTimeout,
	}
}

// WithCallTimeout overrides the per-call timeout (tests use a short one).
func (p *Pipeline) WithCallTimeout(d time.Duration) *Pipeline {
	if d > 0 {
		p.callTimeout = d
	}
	return p
}

// stageFunc runs one stage against the accumulated result. A non-empty
// skip reason marks the stage Skipped; an error marks it Failed and is
// recorded on the result as a stage error.
type stageFunc func(ctx context.Context) (skipReason string, err error)

// Run executes the stages in fixed order and returns the accumulated
// result. The error return is reserved for context cancellation; provider
// failures live on the result itself.
func (p *Pipeline) Run(ctx context.Context, lead model.LeadRecord, onEvent model.EventFunc) (*model.EnrichmentResult, error) {
	log := zap.L().With(zap.String("lead", lead.ID))
	log.Info("pipeline: starting enrichment")

	result := model.NewEnrichmentResult(lead)

	track := func(stage, provider string, fn stageFunc) model.StageOutcome {
		start := time.Now()
		skipReason, err := fn(ctx)
		outcome := model.StageOutcome{
			Stage:      stage,
			Status:     model.StageStatusComplete,
			DurationMS: time.Since(start).Milliseconds(),
		}

		switch {
		case err != nil && resilience.IsValidation(err):
			// Missing input fields skip the stage rather than fail it.
			outcome.Status = model.StageStatusSkipped
			outcome.Reason = err.Error()
			log.Debug("pipeline: stage skipped",
				zap.String("stage", stage),
				zap.String("reason", outcome.Reason),
			)
		case err != nil:
			outcome.Status = model.StageStatusFailed
			outcome.Error = err.Error()
			outcome.Retryable = resilience.IsRetryable(err)
			result.AddStageError(stage, provider, err.Error(), outcome.Retryable)
			log.Warn("pipeline: stage failed",
				zap.String("stage", stage),
				zap.Int64("duration_ms", outcome.DurationMS),
				zap.Error(err),
			)
		case skipReason != "":
			outcome.Status = model.StageStatusSkipped
			outcome.Reason = skipReason
			log.Debug("pipeline: stage skipped",
				zap.String("stage", stage),
				zap.String("reason", skipReason),
			)
		default:
			log.Info("pipeline: stage complete",
				zap.String("stage", stage),
				zap.Int64("duration_ms", outcome.DurationMS),
			)
		}

		result.Stages = append(result.Stages, outcome)
		if onEvent != nil {
			onEvent(model.StageEvent{LeadID: lead.ID, Outcome: outcome})
		}
		return outcome
	}

	skip := func(stage, reason string) {
		track(stage, "", func(context.Context) (string, error) {
			return reason, nil
		})
	}

	// Stage 1: identity/location normalization — local, cannot fail.
	track(model.StageNormalize, "", func(context.Context) (string, error) {
		p.normalize(result)
		return "", nil
	})

	// Stage 2: postal code resolution — free local lookup.
	track(model.StagePostal, "", func(context.Context) (string, error) {
		return p.resolvePostal(result), nil
	})

	// Stage 3: phone discovery.
	track(model.StageDiscover, peoplesearch.ProviderKey, func(ctx context.Context) (string, error) {
		return p.discover(ctx, result)
	})

	// Stage 4: line-type/carrier validation.
	track(model.StageLineType, phoneintel.ProviderKey, func(ctx context.Context) (string, error) {
		return p.validateLine(ctx, result)
	})

	// Stage 5: gatekeep checkpoint.
	decision := p.gate.Decide(result)
	track(model.StageGatekeep, "", func(context.Context) (string, error) {
		if !decision.Proceed {
			return decision.Reason, nil
		}
		return "", nil
	})

	if !decision.Proceed {
		skip(model.StageDNC, "gatekeep: "+decision.Reason)
		skip(model.StageAge, "gatekeep: "+decision.Reason)
		result.EnrichedAt = time.Now().UTC()
		log.Info("pipeline: short-circuited", zap.String("reason", decision.Reason))
		return result, ctx.Err()
	}

	// Stage 6: do-not-call check.
	track(model.StageDNC, dnc.ProviderKey, func(ctx context.Context) (string, error) {
		return p.checkDNC(ctx, result)
	})

	// Stage 7: age/demographic enrichment. A number already known to be
	// non-contactable is not worth another paid call.
	if result.DoNotCall != nil && *result.DoNotCall {
		skip(model.StageAge, "record is do-not-call")
	} else {
		track(model.StageAge, demographic.ProviderKey, func(ctx context.Context) (string, error) {
			return p.lookupAge(ctx, result)
		})
	}

	result.EnrichedAt = time.Now().UTC()
	log.Info("pipeline: enrichment complete",
		zap.Bool("has_phone", result.HasPhone()),
		zap.Bool("complete", result.Complete()),
		zap.Int("stage_errors", len(result.StageErrors)),
	)
	return result, ctx.Err()
}

// callProvider runs one provider call under the shared throttle with a
// bounded timeout and a single retry for retryable failures.
func callProvider[T any](ctx context.Context, p *Pipeline, providerKey, stage string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(providerKey, stage)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		var zero T
		if err := p.throttle.Acquire(ctx, providerKey); err != nil {
			return zero, err
		}
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
		return fn(callCtx)
	})
}
