package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchwiseai/pulse-go/pkg/pulse"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(Default(), lookupFrom(map[string]string{
		EnvAPIURL:             " http://localhost:9000 ",
		EnvToken:              "tok",
		EnvTimeout:            "5s",
		EnvJobTimeout:         "1m",
		EnvMaxSimilarityItems: "500",
		EnvBatchConcurrency:   "2",
		EnvLegacyJobs:         "true",
		EnvCacheDir:           "/tmp/pulse",
		EnvLogLevel:           "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.JobTimeout)
	assert.Equal(t, 500, cfg.MaxSimilarityItems)
	assert.Equal(t, 2, cfg.BatchConcurrency)
	assert.True(t, cfg.LegacyJobs)
	assert.Equal(t, "/tmp/pulse", cfg.CacheDir)
	assert.Equal(t, "info", cfg.LogLevel, "empty values keep the default")
}

func TestFromEnv_InvalidValues(t *testing.T) {
	_, err := FromEnv(Default(), lookupFrom(map[string]string{
		EnvTimeout:          "soon",
		EnvBatchConcurrency: "many",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, EnvTimeout)
	assert.ErrorContains(t, err, EnvBatchConcurrency)
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "http://localhost:9000"
	cfg.Token = "tok"
	cfg.MaxSimilarityItems = 100

	pc := cfg.ClientConfig()
	assert.Equal(t, "http://localhost:9000", pc.BaseURL)
	assert.Equal(t, "http://localhost:9000", pc.Audience)
	assert.Equal(t, "tok", pc.Token)
	assert.Equal(t, 100, pc.MaxSimilarityItems)
	assert.Equal(t, pulse.DefaultStatusRetries, pc.StatusRetries)
	assert.Empty(t, pc.ClientID)

	cfg.ClientID, cfg.ClientSecret = "id", "secret"
	pc = cfg.ClientConfig()
	assert.Equal(t, "id", pc.ClientID)
	assert.Equal(t, DefaultTokenURL, pc.TokenURL)
	assert.Empty(t, pc.Token)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.env")
	require.NoError(t, os.WriteFile(path, []byte("PULSE_CACHE_DIR=/from/dotenv\nPULSE_LOG_FORMAT=json\n"), 0o644))

	t.Setenv(EnvLogFormat, "text")
	t.Setenv(EnvCacheDir, "")
	os.Unsetenv(EnvCacheDir)

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.CacheDir)
	assert.Equal(t, "text", cfg.LogFormat, "the process environment wins over .env")
}
