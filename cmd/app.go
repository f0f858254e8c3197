package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/ai"
	"github.com/spigell/bewerbungs-agent/internal/ai/gemini"
	"github.com/spigell/bewerbungs-agent/internal/apperrors"
	"github.com/spigell/bewerbungs-agent/internal/cache"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/documents"
	"github.com/spigell/bewerbungs-agent/internal/filtering"
	"github.com/spigell/bewerbungs-agent/internal/lifecycle"
	"github.com/spigell/bewerbungs-agent/internal/logger"
	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/notify"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
	"github.com/spigell/bewerbungs-agent/internal/secrets"
	"github.com/spigell/bewerbungs-agent/internal/storage"
)

// exitGuard is the exit code for operations rejected by a guard.
const exitGuard = 2

var exit = os.Exit

// runtime holds what every command needs once the config is loaded.
type runtime struct {
	ctx    context.Context
	config *Config
	logger *zap.Logger
	repo   storage.Repository
	scorer scoring.Scorer
	engine *lifecycle.Engine

	closers []func() error
}

func setup(cmd *cobra.Command) *runtime {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting", zap.String("command", cmd.CommandPath()), zap.String("version", version))

	repo, err := storage.Open(config.Database, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err),
			zap.String("hint", "set database.dsn-file or BEWERBUNGS_DATABASE_DSN, or database.driver=memory"))
	}

	scorer := scoring.NewScorer(config.Scoring)
	docs, err := documents.NewGenerator(scorer)
	if err != nil {
		logger.Fatal("loading document templates", zap.Error(err))
	}

	r := &runtime{
		ctx:     ctx,
		config:  config,
		logger:  logger,
		repo:    repo,
		scorer:  scorer,
		engine:  lifecycle.NewEngine(repo, plan.NewGuard(config.Plans), scorer, docs, logger),
		closers: []func() error{repo.Close},
	}
	return r
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("closing a resource", zap.Error(err))
		}
	}
	r.logger.Sync()
}

// fail stops the command. Guard violations are user facing and printed as
// they are; everything else is logged.
func (r *runtime) fail(msg string, err error) {
	if apperrors.IsGuardViolation(err) || apperrors.IsKind(err, apperrors.KindInvalid) {
		fmt.Fprintln(os.Stderr, err.Error())
		r.close()
		exit(exitGuard)
		return
	}
	r.logger.Fatal(msg, zap.Error(err))
}

// user resolves the --user flag as an email or an id.
func (r *runtime) user() *models.User {
	ref := strings.TrimSpace(viper.GetString("user"))
	if ref == "" {
		r.logger.Fatal("user is required", zap.String("hint", "pass --user or set BEWERBUNGS_USER"))
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = r.repo.GetUserByEmail(r.ctx, ref)
	} else {
		user, err = r.repo.GetUser(r.ctx, ref)
	}
	if err != nil {
		r.fail("resolving the user", err)
	}
	return user
}

// actor names the person behind manual transitions.
func (r *runtime) actor(u *models.User) string {
	return u.Email
}

// classifier returns the classification engine, with the external provider
// when one is configured.
func (r *runtime) classifier() *classify.Engine {
	primary, err := r.aiClassifier()
	if err != nil {
		r.logger.Warn("external classifier disabled, using keywords only", zap.Error(err))
		primary = nil
	}

	engine := classify.NewEngine(r.config.Classification, primary, r.logger)
	r.logger.Debug("classification strategy", zap.String("strategy", engine.Strategy()))
	return engine
}

func (r *runtime) aiClassifier() (ai.Classifier, error) {
	cfg := r.config.AI
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(r.ctx, apiKey, cfg.Gemini, r.logger)
	if err != nil {
		return nil, err
	}
	return gemini.NewClassifier(generator, r.logger, cfg.Gemini.MaxLogLen), nil
}

// seen returns the redis deduplication cache, or Nop when none is configured.
func (r *runtime) seen() cache.Seen {
	cfg := r.config.Redis
	if cfg == nil || strings.TrimSpace(cfg.Addr) == "" {
		return cache.Nop{}
	}

	redis, err := cache.NewRedis(r.ctx, *cfg)
	if err != nil {
		r.logger.Warn("redis is unavailable, relying on the database for deduplication", zap.Error(err))
		return cache.Nop{}
	}
	r.closers = append(r.closers, redis.Close)
	return redis
}

func (r *runtime) filters() *filtering.Pipeline {
	pipeline := filtering.New(r.config.Filters, r.scorer, r.logger)
	r.logger.Debug("job alert filters", zap.Any("filters", pipeline.Describe()))
	return pipeline
}

// notifier returns the review queue notifier. A broken telegram setup is
// logged and replaced by Nop so preparation still completes.
func (r *runtime) notifier() notify.Notifier {
	cfg := r.config.Telegram
	if !cfg.Enabled {
		return notify.Nop{}
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "telegram token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "TELEGRAM_TOKEN",
	})
	if err != nil {
		r.logger.Warn("telegram notifications disabled", zap.Error(err))
		return notify.Nop{}
	}

	tg, err := notify.NewTelegram(token, cfg.ChatID, r.logger)
	if err != nil {
		r.logger.Warn("telegram notifications disabled", zap.Error(err))
		return notify.Nop{}
	}
	return tg
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %s\n", err)
		return
	}
	fmt.Println(string(pretty))
}
