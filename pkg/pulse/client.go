package pulse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Client provides typed access to the Pulse API operations. Asynchronous
// submissions are waited on transparently.
type Client struct {
	transport Transport
	poller    *Poller
	batcher   *Batcher
	config    Config
	logger    *slog.Logger
}

// NewClient creates a new Pulse API client over HTTP.
func NewClient(config Config, logger *slog.Logger) *Client {
	return NewClientWithTransport(NewHTTPTransport(config, logger), config, logger)
}

// NewClientWithTransport creates a client over an existing Transport.
func NewClientWithTransport(transport Transport, config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poller := NewPoller(transport, config, logger)
	return &Client{
		transport: transport,
		poller:    poller,
		batcher:   NewBatcher(transport, poller, config, logger),
		config:    config,
		logger:    logger.With("component", "pulse-client"),
	}
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// CompareSimilarity computes self- or cross-similarity, batching requests
// that exceed the configured item ceiling.
func (c *Client) CompareSimilarity(ctx context.Context, req SimilarityRequest) (*SimilarityResponse, error) {
	return c.batcher.Similarity(ctx, req)
}

// GenerateThemes clusters texts into themes. Fewer than two texts yield an
// empty response without a request.
func (c *Client) GenerateThemes(ctx context.Context, req ThemesRequest) (*ThemesResponse, error) {
	if len(req.Inputs) < 2 {
		return &ThemesResponse{Themes: []Theme{}}, nil
	}
	return call[ThemesResponse](ctx, c, OpThemes, req, req.Fast)
}

// AnalyzeSentiment classifies the sentiment of texts. Fewer than two texts
// yield an empty response without a request.
func (c *Client) AnalyzeSentiment(ctx context.Context, req SentimentRequest) (*SentimentResponse, error) {
	if len(req.Inputs) < 2 {
		return &SentimentResponse{Results: []SentimentResult{}}, nil
	}
	return call[SentimentResponse](ctx, c, OpSentiment, req, req.Fast)
}

// ExtractElements extracts theme-matching elements from inputs. No inputs or
// an empty theme list yield an empty response without a request.
func (c *Client) ExtractElements(ctx context.Context, req ExtractionsRequest) (*ExtractionsResponse, error) {
	if len(req.Inputs) == 0 || len(req.Themes) == 0 {
		return &ExtractionsResponse{Extractions: [][][]string{}}, nil
	}
	return call[ExtractionsResponse](ctx, c, OpExtractions, req, req.Fast)
}

// CreateEmbeddings generates dense vector embeddings for texts.
func (c *Client) CreateEmbeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error) {
	return call[EmbeddingsResponse](ctx, c, OpEmbeddings, req, req.Fast)
}

// Job returns the current status of a job.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	return c.poller.Refresh(ctx, &Job{ID: id, Status: JobPending})
}

// WaitJob waits for job to finish. A timeout of zero uses the configured
// JobTimeout.
func (c *Client) WaitJob(ctx context.Context, job *Job, timeout time.Duration) (*Job, error) {
	return c.poller.Wait(ctx, job, timeout)
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	return c.transport.Close()
}

func call[T any](ctx context.Context, c *Client, op Operation, body any, fast bool) (*T, error) {
	logger := c.logger.With("op", op, "fast", fast)
	start := time.Now()

	sub, err := c.transport.Submit(ctx, op, body, fast)
	if err != nil {
		return nil, err
	}

	raw := sub.Result
	if sub.Job != nil {
		logger.Debug("job submitted", "job_id", sub.Job.ID)
		job, err := c.poller.Wait(ctx, sub.Job, c.config.JobTimeout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if job.Result == nil {
			return nil, fmt.Errorf("%s: job %s completed without a result", op, job.ID)
		}
		raw = job.Result
	}

	result, err := UnmarshalResult[T](raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Debug("request complete", "duration", time.Since(start))
	return &result, nil
}
