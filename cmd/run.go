package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/model"
)

var runLead model.LeadRecord

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a single lead from flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runLead.FullName() == "" && runLead.Phone == "" && runLead.Email == "" {
			return eris.New("need at least a name, phone, or email")
		}
		if runLead.ID == "" {
			runLead.ID = "adhoc"
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Pipeline.Run(ctx, runLead, logStageEvent)
		if err != nil {
			return eris.Wrap(err, "run lead")
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runLead.RawName, "name", "", "full name")
	runCmd.Flags().StringVar(&runLead.FirstName, "first", "", "first name")
	runCmd.Flags().StringVar(&runLead.LastName, "last", "", "last name")
	runCmd.Flags().StringVar(&runLead.City, "city", "", "city")
	runCmd.Flags().StringVar(&runLead.State, "state", "", "state")
	runCmd.Flags().StringVar(&runLead.Phone, "phone", "", "known phone")
	runCmd.Flags().StringVar(&runLead.Email, "email", "", "known email")
	rootCmd.AddCommand(runCmd)
}
