package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/store"
)

var (
	batchesStatus string
	batchesLimit  int
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List stored batch runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		batches, err := e.Store.ListBatches(ctx, store.BatchFilter{
			Status: model.BatchStatus(batchesStatus),
			Limit:  batchesLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list batches")
		}

		out := cmd.OutOrStdout()
		for _, b := range batches {
			fmt.Fprintf(out, "%s  %-10s  %d/%d processed  %d with phone  %d errors  %s\n",
				b.ID, b.Status,
				b.Progress.Processed, b.Progress.Total,
				b.Progress.WithPhone, b.Progress.WithErrors,
				b.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return nil
	},
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Dump the stored results of a batch as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		results, err := e.Store.GetResults(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get results")
		}

		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal results")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	batchesCmd.Flags().StringVar(&batchesStatus, "status", "", "filter by status")
	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 20, "max batches to list")
	batchesCmd.AddCommand(batchesShowCmd)
	rootCmd.AddCommand(batchesCmd)
}
