package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/lifecycle"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/workflow"
)

var applicationCmd = &cobra.Command{
	Use:     "application",
	Aliases: []string{"app"},
	Short:   "Create applications and move them through review",
}

var applicationCreateCmd = &cobra.Command{
	Use:   "create JOB_ID",
	Short: "Create a DRAFT application for a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		app, err := r.engine.Create(r.ctx, r.user().ID, args[0])
		if err != nil {
			r.fail("creating the application", err)
		}
		printJSON(app)
	},
}

var applicationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications of --user",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		filter := models.ApplicationFilter{UserID: r.user().ID}
		if s := cmd.Flag("status").Value.String(); s != "" {
			status, err := workflow.ParseStatus(s)
			if err != nil {
				r.logger.Fatal("parsing the status", zap.Error(err))
			}
			filter.Status = status
		}

		apps, err := r.engine.List(r.ctx, filter)
		if err != nil {
			r.fail("listing applications", err)
		}
		printJSON(apps)
	},
}

var applicationReviewQueueCmd = &cobra.Command{
	Use:   "review-queue",
	Short: "List applications waiting for your approval, best fit first",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		user := r.user()
		queue, err := r.engine.ReviewQueue(r.ctx, user.ID)
		if err != nil {
			r.fail("loading the review queue", err)
		}
		printJSON(queue)

		if notifyFlag, _ := cmd.Flags().GetBool("notify"); notifyFlag {
			notifyReviewQueue(r, r.engine, user.ID)
		}
	},
}

var applicationShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print an application with its documents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		app := r.application(args[0], r.user())
		docs, err := r.engine.Documents(r.ctx, app.ID)
		if err != nil && !apperrors.IsNotFound(err) {
			r.fail("loading documents", err)
		}
		printJSON(struct {
			Application *models.Application    `json:"application"`
			Documents   *models.DocumentBundle `json:"documents,omitempty"`
		}{app, docs})
	},
}

var applicationGenerateCmd = &cobra.Command{
	Use:   "generate ID",
	Short: "Generate or regenerate cover letters and notes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		app := r.application(args[0], r.user())
		bundle, err := r.engine.GenerateDocuments(r.ctx, app.ID)
		if err != nil {
			r.fail("generating documents", err)
		}
		printJSON(bundle)
	},
}

var applicationMarkReviewCmd = transitionCommand("mark-review ID", "Move a DRAFT with documents to REVIEW_REQUIRED",
	func(r *runtime, id, actor string) (*models.Application, error) {
		return r.engine.MarkForReview(r.ctx, id, actor)
	})

var applicationMarkReadyCmd = transitionCommand("mark-ready ID", "Move an approved application to READY_TO_SUBMIT",
	func(r *runtime, id, actor string) (*models.Application, error) {
		return r.engine.MarkReady(r.ctx, id, actor)
	})

var applicationMarkSubmittedCmd = transitionCommand("mark-submitted ID", "Record that you submitted the application yourself",
	func(r *runtime, id, actor string) (*models.Application, error) {
		return r.engine.MarkSubmitted(r.ctx, id, actor)
	})

var applicationApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve exactly one application after reviewing it",
	Long: `Approve exactly one application. The id must be passed with --id and the
approval must be confirmed interactively, or with --confirm in scripts.
Nothing is ever approved in bulk.`,
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		user := r.user()
		id, _ := cmd.Flags().GetString("id")
		confirmed, _ := cmd.Flags().GetBool("confirm")

		if strings.TrimSpace(id) != "" {
			app := r.application(id, user)
			id = app.ID
			if !confirmed {
				confirmed = confirmApproval(r, app)
			}
		}

		app, err := r.engine.Approve(r.ctx, lifecycle.Approval{
			ApplicationID: id,
			UserID:        user.ID,
			Actor:         r.actor(user),
			Confirmed:     confirmed,
		})
		if err != nil {
			r.fail("approving the application", err)
		}
		r.logger.Info("application approved",
			zap.String("application_id", app.ID),
			zap.String("approved_by", app.ApprovedBy),
		)
	},
}

var applicationOutcomeCmd = &cobra.Command{
	Use:   "outcome ID OUTCOME",
	Short: "Record the employer's answer: interview, rejected or offer",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		outcome, err := workflow.ParseOutcome(args[1])
		if err != nil {
			r.logger.Fatal("parsing the outcome", zap.Error(err))
		}

		user := r.user()
		app := r.application(args[0], user)
		app, err = r.engine.RecordOutcome(r.ctx, app.ID, outcome, r.actor(user))
		if err != nil {
			r.fail("recording the outcome", err)
		}
		printJSON(app)
	},
}

var applicationNotesCmd = &cobra.Command{
	Use:   "notes ID TEXT",
	Short: "Append notes to an application",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		app := r.application(args[0], r.user())
		app, err := r.engine.AddNotes(r.ctx, app.ID, args[1])
		if err != nil {
			r.fail("adding notes", err)
		}
		printJSON(app)
	},
}

var applicationHistoryCmd = &cobra.Command{
	Use:   "history ID",
	Short: "Print the status history of an application",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		app := r.application(args[0], r.user())
		history, err := r.engine.History(r.ctx, app.ID)
		if err != nil {
			r.fail("loading the history", err)
		}
		printJSON(history)
	},
}

type transitionFunc func(r *runtime, id, actor string) (*models.Application, error)

func transitionCommand(use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			r := setup(cmd)
			defer r.close()

			user := r.user()
			app := r.application(args[0], user)
			app, err := fn(r, app.ID, r.actor(user))
			if err != nil {
				r.fail(cmd.Name(), err)
			}
			printJSON(app)
		},
	}
}

// application loads an application owned by user. Applications of other
// users are reported as missing.
func (r *runtime) application(id string, user *models.User) *models.Application {
	app, err := r.engine.Get(r.ctx, id)
	if err == nil && app.UserID != user.ID {
		err = models.ApplicationNotFound(id)
	}
	if err != nil {
		r.fail("loading the application", err)
	}
	return app
}

// confirmApproval shows what is about to be approved and asks for a yes.
func confirmApproval(r *runtime, app *models.Application) bool {
	label := fmt.Sprintf("Approve application %s (%s)", app.ID, app.Status)
	if job, err := r.repo.GetJob(r.ctx, app.JobID); err == nil {
		label = fmt.Sprintf("Approve %q at %s", job.Role, job.Company)
		if app.FitScore != nil {
			label += fmt.Sprintf(", fit %d/100", *app.FitScore)
		}
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	switch {
	case err == nil:
		return true
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt):
		return false
	default:
		r.logger.Warn("confirmation prompt failed", zap.Error(err))
		return false
	}
}

func init() {
	rootCmd.AddCommand(applicationCmd)
	applicationCmd.AddCommand(
		applicationCreateCmd,
		applicationListCmd,
		applicationReviewQueueCmd,
		applicationShowCmd,
		applicationGenerateCmd,
		applicationMarkReviewCmd,
		applicationApproveCmd,
		applicationMarkReadyCmd,
		applicationMarkSubmittedCmd,
		applicationOutcomeCmd,
		applicationNotesCmd,
		applicationHistoryCmd,
	)

	applicationListCmd.Flags().String("status", "", "only applications in this status, e.g. REVIEW_REQUIRED")
	applicationReviewQueueCmd.Flags().Bool("notify", false, "also send the queue to telegram")

	applicationApproveCmd.Flags().String("id", "", "id of the application to approve")
	applicationApproveCmd.Flags().Bool("confirm", false, "skip the interactive confirmation")
}
