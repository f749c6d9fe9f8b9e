package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/batch"
	"github.com/sells-group/enrich-cli/internal/model"
)

var (
	batchLimit      int
	batchFlushEvery int
	batchResumeID   string
)

var batchCmd = &cobra.Command{
	Use:   "batch <leads.csv>",
	Short: "Enrich a CSV of leads through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		leads, err := loadLeadsCSV(args[0])
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			zap.L().Info("no usable leads found")
			return nil
		}

		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Batch.Limit
		}
		if limit > 0 && len(leads) > limit {
			leads = leads[:limit]
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		flushEvery := batchFlushEvery
		if flushEvery <= 0 {
			flushEvery = cfg.Batch.FlushEvery
		}

		opts := []batch.Option{batch.WithFlushEvery(flushEvery)}
		if batchResumeID != "" {
			opts = append(opts, batch.WithResume(batchResumeID))
		}
		runner := batch.NewRunner(e.Pipeline, e.Store, opts...)

		summary, err := runner.Run(ctx, leads, logStageEvent)
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		printSummary(cmd, summary)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of leads to process (0 = config default)")
	batchCmd.Flags().IntVar(&batchFlushEvery, "flush-every", 0, "records between durable flushes (0 = config default)")
	batchCmd.Flags().StringVar(&batchResumeID, "resume", "", "resume an interrupted batch by id")
	rootCmd.AddCommand(batchCmd)
}

// logStageEvent reports per-stage progress through the global logger.
func logStageEvent(ev model.StageEvent) {
	switch ev.Outcome.Status {
	case model.StageStatusFailed:
		zap.L().Warn("stage failed",
			zap.String("lead", ev.LeadID),
			zap.String("stage", ev.Outcome.Stage),
			zap.String("error", ev.Outcome.Error),
		)
	default:
		zap.L().Debug("stage done",
			zap.String("lead", ev.LeadID),
			zap.String("stage", ev.Outcome.Stage),
			zap.String("status", string(ev.Outcome.Status)),
		)
	}
}

func printSummary(cmd *cobra.Command, s *model.BatchSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "batch %s\n", s.BatchID)
	fmt.Fprintf(out, "  processed:   %d/%d\n", s.Progress.Processed, s.Progress.Total)
	fmt.Fprintf(out, "  with phone:  %d\n", s.Progress.WithPhone)
	fmt.Fprintf(out, "  complete:    %d\n", s.Progress.Complete)
	fmt.Fprintf(out, "  do-not-call: %d\n", s.Progress.DoNotCall)
	fmt.Fprintf(out, "  with errors: %d\n", s.Progress.WithErrors)
	if s.Cancelled {
		fmt.Fprintln(out, "  (cancelled before completion — resume with --resume "+s.BatchID+")")
	}
}
