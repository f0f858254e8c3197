package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		if err := r.repo.Migrate(r.ctx); err != nil {
			r.logger.Fatal("migrating the database", zap.Error(err))
		}
		r.logger.Info("database schema is up to date", zap.String("driver", r.config.Database.Driver))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
