package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/cache"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/lifecycle"
	"github.com/spigell/bewerbungs-agent/internal/notify"
	"github.com/spigell/bewerbungs-agent/internal/signals"
	"github.com/spigell/bewerbungs-agent/internal/sources/gmail"
)

// messageFile is the YAML layout accepted by sync --file.
type messageFile struct {
	MessageID   string    `yaml:"message_id"`
	ThreadID    string    `yaml:"thread_id"`
	Sender      string    `yaml:"sender"`
	Subject     string    `yaml:"subject"`
	Body        string    `yaml:"body"`
	Attachments []string  `yaml:"attachments"`
	ReceivedAt  time.Time `yaml:"received_at"`
}

// fileSource replays messages stored in a YAML file.
type fileSource struct {
	path string
}

func (s fileSource) Name() string { return "file" }

func (s fileSource) Fetch(_ context.Context) ([]signals.Raw, error) {
	var messages []messageFile
	if err := readYAML(s.path, &messages); err != nil {
		return nil, err
	}
	raws := make([]signals.Raw, 0, len(messages))
	for _, m := range messages {
		raws = append(raws, signals.Raw(m))
	}
	return raws, nil
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch new messages and classify them",
	Long: `Fetch new messages from Gmail, or from a YAML file with --file, store each
message once and label it as job_alert, rejection, interview, offer or
unclassified.`,
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		user := r.user()

		var src signals.Source
		if path := cmd.Flag("file").Value.String(); path != "" {
			src = fileSource{path: path}
		} else {
			gm, err := gmail.New(r.ctx, r.config.Gmail, r.logger)
			if err != nil {
				r.logger.Fatal("connecting to gmail", zap.Error(err),
					zap.String("hint", "set gmail.token-file or pass --file"))
			}
			src = gm
		}

		processor := signals.NewProcessor(r.repo, r.classifier(), r.seen(), r.logger)
		res, err := processor.Sync(r.ctx, user.ID, src)
		if err != nil {
			r.fail("syncing messages", err)
		}
		printJSON(res)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [SIGNAL_ID]",
	Short: "Classify a stored message again, or classify text given by flags",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := setup(cmd)
		defer r.close()

		engine := r.classifier()

		if len(args) == 1 {
			processor := signals.NewProcessor(r.repo, engine, cache.Nop{}, r.logger)
			sig, err := processor.Reclassify(r.ctx, args[0])
			if err != nil {
				r.fail("classifying the message", err)
			}
			printJSON(sig)
			return
		}

		flags := cmd.Flags()
		subject, _ := flags.GetString("subject")
		body, _ := flags.GetString("body")
		if path, _ := flags.GetString("body-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				r.logger.Fatal("reading the body file", zap.Error(err))
			}
			body = string(data)
		}
		if strings.TrimSpace(subject) == "" && strings.TrimSpace(body) == "" {
			r.logger.Fatal("nothing to classify", zap.String("hint", "pass a signal id, --subject or --body"))
		}

		printJSON(engine.Classify(r.ctx, classify.Input{Subject: subject, Body: body}))
	},
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Turn unprocessed job alerts into applications waiting for review",
	Run: func(cmd *cobra.Command, _ []string) {
		r := setup(cmd)
		defer r.close()

		user := r.user()
		limit, _ := cmd.Flags().GetInt("limit")

		preparer := signals.NewPreparer(r.repo, r.engine, r.logger,
			signals.WithFilters(r.filters(), r.repo))
		res, err := preparer.Prepare(r.ctx, user.ID, limit)
		if err != nil {
			r.fail("preparing applications", err)
		}
		printJSON(res)

		if res.Stopped != "" {
			fmt.Fprintln(os.Stderr, res.Stopped)
		}

		notifyReviewQueue(r, r.engine, user.ID)
	},
}

// notifyReviewQueue sends the current review queue. Failures are logged only.
func notifyReviewQueue(r *runtime, engine *lifecycle.Engine, userID string) {
	notifier := r.notifier()
	if _, ok := notifier.(notify.Nop); ok {
		return
	}

	queue, err := engine.ReviewQueue(r.ctx, userID)
	if err != nil {
		r.logger.Warn("loading the review queue for notification", zap.Error(err))
		return
	}
	if err := notifier.ReviewQueue(r.ctx, notify.Items(r.ctx, r.repo, queue)); err != nil {
		r.logger.Warn("sending the review queue", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(syncCmd, classifyCmd, prepareCmd)

	syncCmd.Flags().StringP("file", "f", "", "YAML file with messages to ingest instead of gmail")

	classifyCmd.Flags().String("subject", "", "message subject")
	classifyCmd.Flags().String("body", "", "message body")
	classifyCmd.Flags().String("body-file", "", "file with the message body")

	prepareCmd.Flags().IntP("limit", "l", 0, "maximum number of job alerts to prepare, 0 for all")
}
