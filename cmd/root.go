package cmd

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/bewerbungs-agent/internal/ai/gemini"
	"github.com/spigell/bewerbungs-agent/internal/cache"
	"github.com/spigell/bewerbungs-agent/internal/classify"
	"github.com/spigell/bewerbungs-agent/internal/filtering"
	"github.com/spigell/bewerbungs-agent/internal/notify"
	"github.com/spigell/bewerbungs-agent/internal/plan"
	"github.com/spigell/bewerbungs-agent/internal/scoring"
	"github.com/spigell/bewerbungs-agent/internal/sources/gmail"
	"github.com/spigell/bewerbungs-agent/internal/storage/gormstore"
)

const (
	app       = "bewerbungs-agent"
	envPrefix = "BEWERBUNGS"
)

type Config struct {
	Database       gormstore.Config `mapstructure:"database"`
	Redis          *cache.Config    `mapstructure:"redis"`
	AI             *AIConfig        `mapstructure:"ai"`
	Classification classify.Config  `mapstructure:"classification"`
	Scoring        scoring.Config   `mapstructure:"scoring"`
	Plans          plan.Limits      `mapstructure:"plans"`
	Filters        filtering.Config `mapstructure:"filters"`
	Gmail          gmail.Config     `mapstructure:"gmail"`
	Telegram       notify.Config    `mapstructure:"telegram"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   gemini.Config `mapstructure:"gemini"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "bewerbungs-agent classifies job mail and prepares applications for your review",
		Long: `bewerbungs-agent reads job related messages, labels them, scores job alerts
against your profile and drafts cover letters. Every application stops in
REVIEW_REQUIRED until you approve it explicitly.`,
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is bewerbungs-agent.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user email or id the command acts for")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	setDefaults()
}

func setDefaults() {
	limits := plan.DefaultLimits()
	viper.SetDefault("plans.free", limits.Free)
	viper.SetDefault("plans.pro", limits.Pro)
	viper.SetDefault("plans.agency", limits.Agency)
	viper.SetDefault("scoring.baseline", scoring.DefaultBaseline)
	viper.SetDefault("classification.ceiling", classify.DefaultCeiling)
	viper.SetDefault("database.driver", gormstore.DriverPostgres)
	viper.SetDefault("ai.provider", "gemini")
}

func initConfig() {
	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough when no file was asked for.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}
