package pulse

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"
)

// JobState represents the status of an asynchronous job. Both the current
// and the legacy vocabularies are accepted.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobError     JobState = "error"
	JobFailed    JobState = "failed"

	// Legacy vocabulary.
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
)

// IsSuccess returns true if the job finished successfully.
func (s JobState) IsSuccess() bool {
	return s == JobCompleted || s == JobSucceeded
}

// IsFailure returns true if the job finished unsuccessfully.
func (s JobState) IsFailure() bool {
	return s == JobError || s == JobFailed
}

// IsTerminal returns true if the job will not change status again.
func (s JobState) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

// Job is a handle to a server-side asynchronous computation.
type Job struct {
	ID        string   `json:"jobId"`
	Status    JobState `json:"jobStatus"`
	ResultURL string   `json:"resultUrl,omitempty"`
	Message   string   `json:"message,omitempty"`

	// Result holds the fetched payload once the job completed and its
	// result location was read.
	Result json.RawMessage `json:"-"`

	done bool
}

// UnmarshalJSON accepts both jobId/jobStatus/resultUrl and the legacy
// id/status/result_url spellings.
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw struct {
		JobID          string   `json:"jobId"`
		ID             string   `json:"id"`
		JobStatus      JobState `json:"jobStatus"`
		Status         JobState `json:"status"`
		ResultURL      string   `json:"resultUrl"`
		ResultURLSnake string   `json:"result_url"`
		Message        string   `json:"message"`
		Error          string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*j = Job{
		ID:        firstNonEmpty(raw.JobID, raw.ID),
		Status:    JobState(firstNonEmpty(string(raw.JobStatus), string(raw.Status))),
		ResultURL: firstNonEmpty(raw.ResultURL, raw.ResultURLSnake),
		Message:   firstNonEmpty(raw.Message, raw.Error),
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Poller refreshes job status and waits for jobs to finish.
type Poller struct {
	transport Transport
	config    Config
	logger    *slog.Logger
}

// NewPoller creates a Poller that queries jobs through transport.
func NewPoller(transport Transport, config Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		transport: transport,
		config:    config,
		logger:    logger.With("component", "job-poller"),
	}
}

// Refresh queries the current status of job once. "Not found" and server
// errors are retried up to StatusRetries times with a fixed delay; any other
// failure is returned immediately. The job ID is preserved when the status
// payload omits it.
func (p *Poller) Refresh(ctx context.Context, job *Job) (*Job, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.StatusRetries; attempt++ {
		if attempt > 0 {
			p.logger.Debug("retrying status query", "job_id", job.ID, "attempt", attempt, "error", lastErr)
			if err := sleep(ctx, p.config.StatusRetryDelay); err != nil {
				return nil, err
			}
		}

		next, err := p.transport.JobStatus(ctx, job.ID)
		if err == nil {
			if next.ID == "" {
				next.ID = job.ID
			}
			return next, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Wait polls job until it reaches a terminal status or timeout elapses,
// measured from the start of the call. A timeout of zero uses the
// configured JobTimeout.
//
// On success the result location, if any, is fetched once into Result and
// job is updated in place, so waiting on it again makes no network calls.
// A failed job yields *JobFailedError; an unfinished one *TimeoutError.
func (p *Poller) Wait(ctx context.Context, job *Job, timeout time.Duration) (*Job, error) {
	if job.done {
		return job, nil
	}
	if job.Status.IsFailure() {
		return nil, &JobFailedError{JobID: job.ID, Status: job.Status, Message: job.Message}
	}
	if timeout <= 0 {
		timeout = p.config.JobTimeout
	}

	start := time.Now()
	for {
		cur, err := p.Refresh(ctx, job)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("polled job", "job_id", cur.ID, "status", cur.Status)

		switch {
		case cur.Status.IsSuccess():
			if cur.ResultURL != "" {
				raw, err := p.transport.FetchResult(ctx, cur.ResultURL)
				if err != nil {
					return nil, err
				}
				cur.Result = raw
			}
			cur.done = true
			*job = *cur
			return job, nil

		case cur.Status.IsFailure():
			*job = *cur
			return nil, &JobFailedError{JobID: cur.ID, Status: cur.Status, Message: cur.Message}
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			return nil, &TimeoutError{JobID: job.ID, Timeout: timeout}
		}
		if err := sleep(ctx, min(p.config.PollInterval, timeout-elapsed)); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
