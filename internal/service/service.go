// Package service is the composition root: it wires the Credential
// Store, Rate Limiter, Job Repository, Dispatcher and Webhook
// Dispatcher together behind the small set of operations the API
// surface and CLI subcommands actually call.
package service

import (
	"context"
	"time"

	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/backend"
	"github.com/subraAntoine/apilexia/internal/blobstore"
	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/credential"
	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/queue"
	"github.com/subraAntoine/apilexia/internal/ratelimit"
	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/internal/sse"
	"github.com/subraAntoine/apilexia/internal/webhook"
	"github.com/subraAntoine/apilexia/internal/worker"
	"github.com/subraAntoine/apilexia/pkg/logger"

	"gorm.io/gorm"
)

// Services bundles every collaborator a handler or CLI subcommand
// needs, constructed once at process startup.
type Services struct {
	Config         *config.Config
	Credentials    *credential.Service
	RateLimiter    *ratelimit.Limiter
	Jobs           repository.JobRepository
	Transcriptions repository.TranscriptionRepository
	Blobs          *blobstore.Store
	Dispatcher     *dispatch.Dispatcher
	Webhooks       *webhook.Service
	Queue          *queue.TaskQueue
	Backends       worker.BackendFactory
	Events         *sse.Broadcaster
}

// New builds the full dependency graph for the `serve` process: a
// worker-pool-backed task queue running the real compute backends.
func New(cfg *config.Config, db *gorm.DB) (*Services, error) {
	blobs, err := blobstore.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	jobs := repository.NewJobRepository(db)
	transcriptions := repository.NewTranscriptionRepository(db)
	credentials := credential.NewService(repository.NewCredentialRepository(db), cfg)
	webhooks := webhook.NewService(jobs)
	factory := backend.NewFactory(cfg)
	events := sse.NewBroadcaster()
	processor := worker.NewProcessor(jobs, transcriptions, blobs, factory, webhooks)
	processor.SetEvents(events)

	q := queue.NewTaskQueue(0, processor, jobs)
	dispatcher := dispatch.NewDispatcher(blobs, jobs, q, cfg)

	return &Services{
		Config:         cfg,
		Credentials:    credentials,
		RateLimiter:    ratelimit.NewLimiter(),
		Jobs:           jobs,
		Transcriptions: transcriptions,
		Blobs:          blobs,
		Dispatcher:     dispatcher,
		Webhooks:       webhooks,
		Queue:          q,
		Backends:       factory,
		Events:         events,
	}, nil
}

// Start launches the task queue's worker pool, the rate limiter's
// sweeper, and the webhook delivery sweeper.
func (s *Services) Start(stop <-chan struct{}) {
	s.Queue.Start()
	s.RateLimiter.StartSweeper(time.Minute, stop)
	s.Webhooks.StartSweeper(time.Minute, stop)
}

// Stop drains the task queue's worker pool and closes SSE connections.
func (s *Services) Stop() {
	s.Queue.Stop()
	s.Events.Shutdown()
}

// CancelJob: only pending/queued jobs may be cancelled; anything else
// returns job_not_cancellable.
// Ownership is checked the same way GetJob hides it — a mismatch looks
// like a missing job, not a permission error.
func (s *Services) CancelJob(ctx context.Context, principal, jobID string) *apierror.Error {
	job, err := s.Jobs.FindByID(ctx, jobID)
	if err != nil || job.Principal != principal {
		return apierror.NotFound("job")
	}
	if !job.IsCancellable() {
		return apierror.CannotCancel()
	}

	s.Queue.CancelQueued(jobID)
	if err := s.Jobs.UpdateStatus(ctx, jobID, models.StatusCancelled); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// GetJob enforces ownership hiding: a job owned by a different
// principal returns the identical not-found response as a missing id.
func (s *Services) GetJob(ctx context.Context, principal, jobID string) (*models.Job, *apierror.Error) {
	job, err := s.Jobs.FindByID(ctx, jobID)
	if err != nil || job.Principal != principal {
		return nil, apierror.NotFound("job")
	}
	return job, nil
}

// ListJobs lists jobs owned by principal, optionally filtered.
func (s *Services) ListJobs(ctx context.Context, principal string, status *models.JobStatus, jobType *models.JobType, offset, limit int) ([]models.Job, int64, error) {
	return s.Jobs.ListByPrincipal(ctx, principal, status, jobType, offset, limit)
}

// GetTranscription returns the transcription row for jobID, enforcing
// the same ownership-hiding rule as GetJob.
func (s *Services) GetTranscription(ctx context.Context, principal, jobID string) (*models.Transcription, *apierror.Error) {
	job, aerr := s.GetJob(ctx, principal, jobID)
	if aerr != nil {
		return nil, aerr
	}
	transcription, err := s.Transcriptions.FindByJobID(ctx, job.ID)
	if err != nil {
		return nil, apierror.NotFound("transcription")
	}
	return transcription, nil
}

// DeleteTranscription removes the transcription row and its audio
// blob (best-effort); only the owner may delete.
func (s *Services) DeleteTranscription(ctx context.Context, principal, jobID string) *apierror.Error {
	job, aerr := s.GetJob(ctx, principal, jobID)
	if aerr != nil {
		return aerr
	}
	transcription, err := s.Transcriptions.FindByJobID(ctx, job.ID)
	if err == nil && transcription.BlobKey != nil {
		if err := s.Blobs.Delete(*transcription.BlobKey); err != nil {
			logger.Warn("failed to delete audio blob", "job_id", job.ID, "error", err)
		}
	}
	if err == nil {
		_ = s.Transcriptions.Delete(ctx, transcription.ID)
	}
	if err := s.Jobs.Delete(ctx, job.ID); err != nil {
		return apierror.Internal(err)
	}
	return nil
}
