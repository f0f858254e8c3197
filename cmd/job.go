package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/sources/csvimport"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Add, enrich and import job postings",
}

var jobAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job posting manually",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		flags := cmd.Flags()
		company, _ := flags.GetString("company")
		role, _ := flags.GetString("role")
		requirements, _ := flags.GetString("requirements")
		description, _ := flags.GetString("description")

		if path, _ := flags.GetString("requirements-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				r.logger.Fatal("reading the requirements file", zap.Error(err))
			}
			requirements = string(data)
		}

		job := &models.Job{
			Source:       models.SourceManual,
			Company:      strings.TrimSpace(company),
			Role:         strings.TrimSpace(role),
			Requirements: strings.TrimSpace(requirements),
			Description:  strings.TrimSpace(description),
		}
		enrichment(cmd).Apply(job)

		if job.Company == "" || job.Role == "" {
			r.logger.Fatal("company and role are required")
		}
		if err := r.repo.CreateJob(r.ctx, job); err != nil {
			r.fail("storing the job", err)
		}
		printJSON(job)
	},
}

var jobEnrichCmd = &cobra.Command{
	Use:   "enrich JOB_ID",
	Short: "Set location, compensation or URL of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		job, err := r.repo.EnrichJob(r.ctx, args[0], enrichment(cmd))
		if err != nil {
			r.fail("enriching the job", err)
		}
		printJSON(job)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		jobs, err := r.repo.ListJobs(r.ctx)
		if err != nil {
			r.fail("listing jobs", err)
		}
		printJSON(jobs)
	},
}

var jobImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import jobs from a CSV file with English or German headers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		f, err := os.Open(args[0])
		if err != nil {
			r.logger.Fatal("opening the csv file", zap.Error(err))
		}
		defer f.Close()

		res, err := csvimport.NewImporter(r.repo, r.logger).Import(r.ctx, f)
		if res == nil {
			r.logger.Fatal("importing jobs", zap.Error(err))
		}
		for _, e := range multierr.Errors(err) {
			r.logger.Warn("skipped row", zap.Error(e))
		}
		printJSON(res)
	},
}

func enrichment(cmd *cobra.Command) models.Enrichment {
	flags := cmd.Flags()
	location, _ := flags.GetString("location")
	compensation, _ := flags.GetString("compensation")
	url, _ := flags.GetString("url")
	return models.Enrichment{Location: location, Compensation: compensation, URL: url}
}

func addEnrichmentFlags(cmd *cobra.Command) {
	cmd.Flags().String("location", "", "job location")
	cmd.Flags().String("compensation", "", fmt.Sprintf("compensation, e.g. %q", "60.000 - 70.000 EUR"))
	cmd.Flags().String("url", "", "link to the posting")
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobAddCmd, jobEnrichCmd, jobListCmd, jobImportCmd)

	jobAddCmd.Flags().String("company", "", "company name")
	jobAddCmd.Flags().String("role", "", "role title")
	jobAddCmd.Flags().String("requirements", "", "requirements text")
	jobAddCmd.Flags().String("requirements-file", "", "file with the requirements text")
	jobAddCmd.Flags().String("description", "", "free text description")
	addEnrichmentFlags(jobAddCmd)
	addEnrichmentFlags(jobEnrichCmd)
}
