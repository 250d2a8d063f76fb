package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/researchwiseai/pulse-go/internal/config"
	"github.com/researchwiseai/pulse-go/internal/logging"
)

var (
	flagEnvFile   string
	flagBaseURL   string
	flagToken     string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagTimeout   time.Duration
	flagCacheDir  string
	flagRedisURL  string
	flagFast      bool
	flagOutput    string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the pulse CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse text analysis client",
		Long: `pulse calls the Pulse API to score similarity, generate and allocate themes,
classify sentiment and extract theme elements, either one operation at a time
or as a declarative workflow over a dataset.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if flagEnvFile != "" {
				envFiles = append(envFiles, flagEnvFile)
			}
			loaded, err := config.Load(envFiles...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = applyFlags(cmd, loaded)
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.New(logging.Options{
				Level:   logging.ParseLevel(cfg.LogLevel),
				Format:  cfg.LogFormat,
				Command: cmd.Name(),
			})
			return nil
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagEnvFile, "env-file", "", "Read variables from this .env file (default .env)")
	pf.StringVar(&flagBaseURL, "base-url", "", "Pulse API URL (or PULSE_API_URL env)")
	pf.StringVar(&flagToken, "token", "", "Bearer token (or PULSE_TOKEN env)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "HTTP request timeout")
	pf.StringVar(&flagCacheDir, "cache-dir", "", "Cache results in this directory (or PULSE_CACHE_DIR env)")
	pf.StringVar(&flagRedisURL, "redis-url", "", "Cache results in Redis (or PULSE_REDIS_URL env)")
	pf.BoolVar(&flagFast, "fast", false, "Request synchronous fast mode")
	pf.StringVarP(&flagOutput, "output", "o", "json", "Output format (json, yaml; graph also accepts text)")

	root.AddCommand(
		newThemesCmd(),
		newAllocateCmd(),
		newSentimentCmd(),
		newSimilarityCmd(),
		newExtractCmd(),
		newEmbeddingsCmd(),
		newRunCmd(),
		newGraphCmd(),
		newJobCmd(),
		newCacheCmd(),
		newMockServerCmd(),
	)

	return root
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cmd *cobra.Command, c config.Config) config.Config {
	changed := cmd.Flags().Changed
	if changed("base-url") {
		c.BaseURL = flagBaseURL
	}
	if changed("token") {
		c.Token = flagToken
	}
	if changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if changed("log-format") {
		c.LogFormat = flagLogFormat
	}
	if changed("timeout") {
		c.Timeout = flagTimeout
	}
	if changed("cache-dir") {
		c.CacheDir = flagCacheDir
	}
	if changed("redis-url") {
		c.RedisURL = flagRedisURL
	}
	return c
}
