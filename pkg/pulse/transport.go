package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Submission is the outcome of submitting one request: either an immediate
// Result or a pending Job.
type Submission struct {
	Result json.RawMessage
	Job    *Job
}

// Transport issues single requests against the Pulse API. Implementations
// must be safe for concurrent use.
type Transport interface {
	// Submit posts body to the endpoint for op. A fast submission that is
	// answered with a job handle is an error.
	Submit(ctx context.Context, op Operation, body any, fast bool) (*Submission, error)

	// JobStatus queries the status of a job once.
	JobStatus(ctx context.Context, id string) (*Job, error)

	// FetchResult retrieves a finished job's payload.
	FetchResult(ctx context.Context, resultURL string) (json.RawMessage, error)

	// Close releases idle connections.
	Close() error
}

// HTTPTransport is the Transport backed by net/http.
type HTTPTransport struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// NewHTTPTransport creates a Transport for the given configuration. When
// client credentials are configured, requests carry an OAuth2 token that is
// fetched and refreshed automatically.
func NewHTTPTransport(config Config, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	if config.ClientID != "" && config.ClientSecret != "" && config.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
		}
		if config.Audience != "" {
			cc.EndpointParams = url.Values{"audience": {config.Audience}}
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: config.Timeout})
		httpClient = cc.Client(ctx)
		httpClient.Timeout = config.Timeout
	}

	return &HTTPTransport{
		httpClient: httpClient,
		config:     config,
		logger:     logger.With("component", "pulse-transport"),
	}
}

// Submit implements Transport.
func (t *HTTPTransport) Submit(ctx context.Context, op Operation, body any, fast bool) (*Submission, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", op, err)
	}

	status, respBody, err := t.do(ctx, http.MethodPost, t.endpoint(op.Path()), payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case http.StatusOK:
		return &Submission{Result: respBody}, nil
	case http.StatusAccepted:
		if fast {
			return nil, &APIError{Op: string(op), StatusCode: status, Detail: "job enqueued for a fast request"}
		}
		// The acknowledgment is a job body in either vocabulary.
		var job Job
		if err := json.Unmarshal(respBody, &job); err != nil {
			return nil, fmt.Errorf("%s: decoding job submission: %w", op, err)
		}
		if job.ID == "" {
			return nil, &APIError{Op: string(op), StatusCode: status, Detail: "job submission without a job id"}
		}
		if job.Status == "" {
			job.Status = JobPending
		}
		return &Submission{Job: &job}, nil
	default:
		return nil, &APIError{Op: string(op), StatusCode: status, Detail: string(respBody)}
	}
}

// JobStatus implements Transport.
func (t *HTTPTransport) JobStatus(ctx context.Context, id string) (*Job, error) {
	path := "/jobs?jobId=" + url.QueryEscape(id)
	if t.config.LegacyJobs {
		path = "/jobs/" + url.PathEscape(id)
	}

	status, respBody, err := t.do(ctx, http.MethodGet, t.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "job status", StatusCode: status, Detail: string(respBody)}
	}

	var job Job
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, fmt.Errorf("job status: decoding: %w", err)
	}
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

// FetchResult implements Transport. Relative URLs are resolved against the
// base URL.
func (t *HTTPTransport) FetchResult(ctx context.Context, resultURL string) (json.RawMessage, error) {
	u := resultURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = t.endpoint(u)
	}

	status, respBody, err := t.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("job result: %w", err)
	}
	if status != http.StatusOK {
		return nil, &APIError{Op: "job result", StatusCode: status, Detail: string(respBody)}
	}
	return respBody, nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) endpoint(path string) string {
	return strings.TrimRight(t.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// do performs a single HTTP request and returns the status and body.
func (t *HTTPTransport) do(ctx context.Context, method, u string, payload []byte) (int, []byte, error) {
	requestID := uuid.New().String()
	logger := t.logger.With("method", method, "url", u, "request_id", requestID)

	var body io.Reader
	compressed := false
	if payload != nil {
		body = bytes.NewReader(payload)
		if t.config.Gzip {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(payload); err != nil {
				return 0, nil, fmt.Errorf("compressing request: %w", err)
			}
			if err := zw.Close(); err != nil {
				return 0, nil, fmt.Errorf("compressing request: %w", err)
			}
			body = &buf
			compressed = true
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if t.config.Token != "" && t.config.ClientSecret == "" {
		req.Header.Set("Authorization", "Bearer "+t.config.Token)
	}

	logger.Debug("sending request", "bytes", len(payload), "gzip", compressed)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	logger.Debug("received response", "status", resp.StatusCode)
	return resp.StatusCode, respBody, nil
}
