// Package webhook delivers job completion/failure notifications to
// caller-supplied URLs, at-least-once, with bounded retry and a
// periodic sweeper that recovers deliveries lost to a crash between
// setting a job's terminal state and handing it to this service.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

const (
	maxAttempts = 6 // the first attempt plus five retries
	callTimeout = 30 * time.Second
	sweepBatch  = 50
)

// retryDelay is a var, not a const, so tests can shrink it; production
// code never overrides it away from 30s.
var retryDelay = 30 * time.Second

// ErrorPayload carries the job's terminal failure, when present.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payload is the JSON body posted to webhook_url on job completion or
// failure.
type Payload struct {
	Event       string           `json:"event"`
	JobID       string           `json:"job_id"`
	JobType     models.JobType   `json:"job_type"`
	Status      models.JobStatus `json:"status"`
	CompletedAt *string          `json:"completed_at"`
	ResultURL   *string          `json:"result_url,omitempty"`
	Error       *ErrorPayload    `json:"error,omitempty"`
}

// PayloadFor builds the wire payload for a job that has just reached
// a terminal completed/failed state.
func PayloadFor(job *models.Job) Payload {
	p := Payload{
		Event:     fmt.Sprintf("job.%s", job.Status),
		JobID:     job.ID,
		JobType:   job.Type,
		Status:    job.Status,
		ResultURL: job.ResultURL,
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.UTC().Format(time.RFC3339)
		p.CompletedAt = &s
	}
	if job.Status == models.StatusFailed && job.ErrorCode != nil {
		msg := ""
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		p.Error = &ErrorPayload{Code: *job.ErrorCode, Message: msg}
	}
	return p
}

// Service delivers webhook payloads and tracks delivery on the owning
// job row.
type Service struct {
	client *http.Client
	jobs   repository.JobRepository
}

func NewService(jobs repository.JobRepository) *Service {
	return &Service{
		client: &http.Client{Timeout: callTimeout},
		jobs:   jobs,
	}
}

// Deliver sends payload to url, retrying on network error or
// non-2xx response, up to maxAttempts attempts in all, with a fixed
// delay between attempts. On success it marks the owning job's webhook as
// delivered. Failure after retry exhaustion is logged; the job's
// status is never affected by webhook delivery outcome.
func (s *Service) Deliver(ctx context.Context, jobID, url string, payload Payload) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			logger.Info("retrying webhook delivery", "job_id", jobID, "attempt", attempt)
		}

		if err := s.post(ctx, url, body); err != nil {
			lastErr = err
			logger.Warn("webhook delivery attempt failed", "job_id", jobID, "attempt", attempt, "error", err)
			continue
		}

		if s.jobs != nil {
			if err := s.jobs.MarkWebhookSent(ctx, jobID); err != nil {
				logger.Warn("failed to mark webhook delivered", "job_id", jobID, "error", err)
			}
		}
		logger.Info("webhook delivered", "job_id", jobID)
		return nil
	}

	logger.Error("webhook delivery exhausted retries", "job_id", jobID, "attempts", maxAttempts, "error", lastErr)
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

func (s *Service) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "apilexia-webhook/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sweep re-delivers webhooks for jobs whose terminal status was
// committed but whose delivery flag was never set — the gap between
// "set result" and "enqueue webhook" that a crash can leave open.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.jobs.PendingWebhooks(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending webhooks: %w", err)
	}

	delivered := 0
	for _, job := range jobs {
		if job.WebhookURL == nil || *job.WebhookURL == "" {
			continue
		}
		if err := s.Deliver(ctx, job.ID, *job.WebhookURL, PayloadFor(&job)); err != nil {
			logger.Warn("sweeper webhook delivery failed", "job_id", job.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// StartSweeper runs Sweep on an interval until stop is closed.
func (s *Service) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n, err := s.Sweep(context.Background()); err != nil {
					logger.Warn("webhook sweep failed", "error", err)
				} else if n > 0 {
					logger.Info("webhook sweep delivered pending webhooks", "count", n)
				}
			}
		}
	}()
}
