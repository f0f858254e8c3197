package cmd

import (
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize applications by status and the plan usage of this month",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		report, err := r.engine.Report(r.ctx, r.user().ID)
		if err != nil {
			r.fail("building the report", err)
		}
		printJSON(report)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
