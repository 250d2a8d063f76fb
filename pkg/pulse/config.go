// Package pulse provides a Go client for the Pulse text-analytics API
// (themes, sentiment, similarity, extraction and embeddings), including
// asynchronous job polling and batching of oversized similarity requests.
package pulse

import "time"

// Default service URLs.
const (
	DefaultBaseURL = "https://core.researchwiseai.com/pulse/v1"
	DevBaseURL     = "https://dev.core.researchwiseai.com/pulse/v1"
)

// Default client settings.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultStatusRetries    = 3
	DefaultStatusRetryDelay = 1 * time.Second
	DefaultPollInterval     = 2 * time.Second
	DefaultJobTimeout       = 180 * time.Second
	DefaultBatchJobTimeout  = 30 * time.Minute
	DefaultMaxItems         = 10_000
	DefaultBatchConcurrency = 4
)

// Config holds all configuration for the Pulse API client.
type Config struct {
	// BaseURL is the API root, e.g. https://core.researchwiseai.com/pulse/v1.
	BaseURL string

	// Token is a static bearer token. Ignored when client credentials are set.
	Token string

	// ClientID, ClientSecret, TokenURL and Audience configure the OAuth2
	// client-credentials flow.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Audience     string

	// Timeout is the HTTP client timeout for each request.
	Timeout time.Duration

	// Gzip compresses request bodies.
	Gzip bool

	// LegacyJobs selects the GET /jobs/{id} status route instead of
	// GET /jobs?jobId={id}.
	LegacyJobs bool

	// StatusRetries is how many times a job status query is retried after a
	// "not found" or server error.
	StatusRetries int

	// StatusRetryDelay is the fixed delay between status retries.
	StatusRetryDelay time.Duration

	// PollInterval is the fixed delay between job status polls.
	PollInterval time.Duration

	// JobTimeout bounds the wait for a single asynchronous job.
	JobTimeout time.Duration

	// MaxSimilarityItems is the per-request item ceiling enforced by the
	// server for similarity requests. Must be at least 2.
	MaxSimilarityItems int

	// BatchConcurrency bounds concurrent waits on batched sub-requests.
	// 1 waits sequentially.
	BatchConcurrency int

	// BatchJobTimeout bounds the wait for each batched sub-request.
	BatchJobTimeout time.Duration
}

// DefaultConfig returns a Config with production URLs and default settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:            DefaultBaseURL,
		Audience:           DefaultBaseURL,
		Timeout:            DefaultTimeout,
		Gzip:               true,
		StatusRetries:      DefaultStatusRetries,
		StatusRetryDelay:   DefaultStatusRetryDelay,
		PollInterval:       DefaultPollInterval,
		JobTimeout:         DefaultJobTimeout,
		MaxSimilarityItems: DefaultMaxItems,
		BatchConcurrency:   DefaultBatchConcurrency,
		BatchJobTimeout:    DefaultBatchJobTimeout,
	}
}

// WithBaseURL returns a copy of the config pointing at baseURL.
func (c Config) WithBaseURL(baseURL string) Config {
	c.BaseURL = baseURL
	return c
}

// WithToken returns a copy of the config with the specified token.
func (c Config) WithToken(token string) Config {
	c.Token = token
	return c
}

// WithClientCredentials returns a copy of the config using the OAuth2
// client-credentials flow.
func (c Config) WithClientCredentials(clientID, clientSecret, tokenURL string) Config {
	c.ClientID = clientID
	c.ClientSecret = clientSecret
	c.TokenURL = tokenURL
	return c
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithPolling returns a copy of the config with the specified job polling
// settings.
func (c Config) WithPolling(interval, jobTimeout time.Duration) Config {
	c.PollInterval = interval
	c.JobTimeout = jobTimeout
	return c
}

// WithStatusRetries returns a copy of the config with the specified status
// retry settings.
func (c Config) WithStatusRetries(retries int, delay time.Duration) Config {
	c.StatusRetries = retries
	c.StatusRetryDelay = delay
	return c
}

// WithBatching returns a copy of the config with the specified similarity
// batching settings.
func (c Config) WithBatching(maxItems, concurrency int) Config {
	c.MaxSimilarityItems = maxItems
	c.BatchConcurrency = concurrency
	return c
}

func (c Config) maxItems() int {
	if c.MaxSimilarityItems < 2 {
		return DefaultMaxItems
	}
	return c.MaxSimilarityItems
}
