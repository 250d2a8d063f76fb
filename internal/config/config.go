// Package config resolves pulse command settings from defaults, .env files
// and PULSE_* environment variables. Command-line flags are applied on top
// by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

// Environment variables read by Load.
const (
	EnvAPIURL             = "PULSE_API_URL"
	EnvToken              = "PULSE_TOKEN"
	EnvClientID           = "PULSE_CLIENT_ID"
	EnvClientSecret       = "PULSE_CLIENT_SECRET"
	EnvTokenURL           = "PULSE_TOKEN_URL"
	EnvTimeout            = "PULSE_TIMEOUT"
	EnvJobTimeout         = "PULSE_JOB_TIMEOUT"
	EnvMaxSimilarityItems = "PULSE_MAX_SIMILARITY_ITEMS"
	EnvBatchConcurrency   = "PULSE_BATCH_CONCURRENCY"
	EnvLegacyJobs         = "PULSE_LEGACY_JOBS"
	EnvCacheDir           = "PULSE_CACHE_DIR"
	EnvRedisURL           = "PULSE_REDIS_URL"
	EnvLogLevel           = "PULSE_LOG_LEVEL"
	EnvLogFormat          = "PULSE_LOG_FORMAT"
)

// DefaultTokenURL is the OAuth2 token endpoint used when client credentials
// are given without one.
const DefaultTokenURL = "https://research-wise-ai-eu.eu.auth0.com/oauth/token"

// Config holds configuration for the pulse command.
type Config struct {
	BaseURL      string
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string

	Timeout            time.Duration
	JobTimeout         time.Duration
	MaxSimilarityItems int
	BatchConcurrency   int
	LegacyJobs         bool

	CacheDir string // on-disk result cache; empty disables it
	RedisURL string // shared result cache; takes precedence over CacheDir

	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:            pulse.DefaultBaseURL,
		Timeout:            pulse.DefaultTimeout,
		JobTimeout:         pulse.DefaultJobTimeout,
		MaxSimilarityItems: pulse.DefaultMaxItems,
		BatchConcurrency:   pulse.DefaultBatchConcurrency,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads the given .env files (default ".env"; missing files are
// ignored) into the process environment and returns the defaults overlaid
// with PULSE_* variables. Variables already set win over .env entries.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(Default(), os.LookupEnv)
}

// FromEnv overlays cfg with the variables found by lookup.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str(EnvAPIURL, &cfg.BaseURL)
	str(EnvToken, &cfg.Token)
	str(EnvClientID, &cfg.ClientID)
	str(EnvClientSecret, &cfg.ClientSecret)
	str(EnvTokenURL, &cfg.TokenURL)
	str(EnvCacheDir, &cfg.CacheDir)
	str(EnvRedisURL, &cfg.RedisURL)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvLogFormat, &cfg.LogFormat)
	dur(EnvTimeout, &cfg.Timeout)
	dur(EnvJobTimeout, &cfg.JobTimeout)
	num(EnvMaxSimilarityItems, &cfg.MaxSimilarityItems)
	num(EnvBatchConcurrency, &cfg.BatchConcurrency)
	if v, ok := lookup(EnvLegacyJobs); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLegacyJobs, err))
		} else {
			cfg.LegacyJobs = b
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ClientConfig converts the settings into a pulse client configuration.
// Client credentials take precedence over a static token.
func (c Config) ClientConfig() pulse.Config {
	pc := pulse.DefaultConfig().
		WithBaseURL(c.BaseURL).
		WithTimeout(c.Timeout).
		WithPolling(pulse.DefaultPollInterval, c.JobTimeout).
		WithBatching(c.MaxSimilarityItems, c.BatchConcurrency)
	pc.Audience = c.BaseURL
	pc.LegacyJobs = c.LegacyJobs

	if c.ClientID != "" && c.ClientSecret != "" {
		tokenURL := c.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		return pc.WithClientCredentials(c.ClientID, c.ClientSecret, tokenURL)
	}
	return pc.WithToken(c.Token)
}
