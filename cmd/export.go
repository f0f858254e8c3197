package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/export"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

var exportCmd = &cobra.Command{
	Use:   "export [ID...]",
	Short: "Export applications with documents as json, yaml or text",
	Long: `Export applications with their job, profile, documents and history. Without
ids every application of --user is exported, optionally narrowed by --status.`,
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		flags := cmd.Flags()
		formatName, _ := flags.GetString("format")
		format, err := export.ParseFormat(formatName)
		if err != nil {
			r.logger.Fatal("parsing the format", zap.Error(err))
		}

		user := r.user()
		ids := args
		if len(ids) == 0 {
			filter := models.ApplicationFilter{UserID: user.ID}
			if s, _ := flags.GetString("status"); s != "" {
				if filter.Status, err = workflow.ParseStatus(s); err != nil {
					r.logger.Fatal("parsing the status", zap.Error(err))
				}
			}
			apps, err := r.engine.List(r.ctx, filter)
			if err != nil {
				r.fail("listing applications", err)
			}
			for _, app := range apps {
				ids = append(ids, app.ID)
			}
		}

		records := make([]export.Record, 0, len(ids))
		for _, id := range ids {
			app := r.application(id, user)
			rec, err := export.Load(r.ctx, r.repo, app.ID)
			if err != nil {
				r.fail("loading the application", err)
			}
			records = append(records, *rec)
		}

		var out io.Writer = os.Stdout
		if path, _ := flags.GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				r.logger.Fatal("creating the output file", zap.Error(err))
			}
			defer f.Close()
			out = f
		}

		if err := export.Write(out, format, records); err != nil {
			r.logger.Fatal("writing the export", zap.Error(err))
		}
		r.logger.Debug("exported applications", zap.Int("count", len(records)), zap.String("format", string(format)))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("format", string(export.FormatText), "output format: json, yaml or text")
	exportCmd.Flags().String("status", "", "only applications in this status")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
}
