// Package worker implements the per-task business logic the task
// queue drives: download audio, call the compute backends, run the
// Alignment Engine, commit the result, and hand off to the webhook
// dispatcher. Every ProcessJob call builds its own backend clients so
// no state survives across tasks.
package worker

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/subraAntoine/apilexia/internal/align"
	"github.com/subraAntoine/apilexia/internal/backend"
	"github.com/subraAntoine/apilexia/internal/blobstore"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/internal/webhook"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

const (
	maxAttempts     = 3
	downloadTimeout = 5 * time.Minute
)

// retryDelay is a var, not a const, so tests can shrink it instead of
// spending real minutes waiting out the production retry schedule.
var retryDelay = 60 * time.Second

// BackendFactory builds a fresh backend client per call. backend.Factory
// satisfies this; tests substitute one that hands back mocks.
type BackendFactory interface {
	STT() backend.STTBackend
	Diarization() backend.DiarizationBackend
}

// progressSink receives a best-effort fan-out of progress events; the
// SSE broadcaster satisfies this without the worker package depending
// on gin or http.
type progressSink interface {
	Broadcast(jobID string, eventType string, payload interface{})
}

// Processor implements queue.JobProcessor against the real compute
// backends, blob store and repositories.
type Processor struct {
	jobs           repository.JobRepository
	transcriptions repository.TranscriptionRepository
	blobs          *blobstore.Store
	backends       BackendFactory
	webhooks       *webhook.Service
	events         progressSink
}

func NewProcessor(jobs repository.JobRepository, transcriptions repository.TranscriptionRepository, blobs *blobstore.Store, backends BackendFactory, webhooks *webhook.Service) *Processor {
	return &Processor{
		jobs:           jobs,
		transcriptions: transcriptions,
		blobs:          blobs,
		backends:       backends,
		webhooks:       webhooks,
	}
}

// SetEvents wires a progress fan-out sink; optional, nil by default.
func (p *Processor) SetEvents(sink progressSink) {
	p.events = sink
}

// ProcessJob runs the full worker pipeline for jobID, retrying
// transient failures up to maxAttempts times with a fixed delay
// before giving up and marking the job failed.
func (p *Processor) ProcessJob(ctx context.Context, jobID string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			logger.Info("retrying job", "job_id", jobID, "attempt", attempt)
		}

		if err := p.runOnce(ctx, jobID); err != nil {
			lastErr = err
			logger.Warn("job attempt failed", "job_id", jobID, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}

	p.fail(ctx, jobID, "internal_error", lastErr)
	return fmt.Errorf("job %s exhausted retries: %w", jobID, lastErr)
}

func (p *Processor) runOnce(ctx context.Context, jobID string) error {
	job, err := p.jobs.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.IsTerminal() {
		return nil
	}

	now := time.Now()
	job.Status = models.StatusProcessing
	job.StartedAt = &now
	if err := p.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	p.progress(ctx, jobID, 10, "Downloading audio")

	transcription, err := p.transcriptions.FindByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load transcription: %w", err)
	}

	audioPath, cleanup, err := p.materializeAudio(ctx, transcription)
	if err != nil {
		return fmt.Errorf("materialize audio: %w", err)
	}
	defer cleanup()

	p.progress(ctx, jobID, 20, "Transcribing audio")
	sttResult, err := p.backends.STT().Transcribe(ctx, audioPath, derefStr(transcription.LanguageRequested), true)
	if err != nil {
		return fmt.Errorf("stt backend: %w", err)
	}

	words := convertWords(sttResult.Words)
	segments := convertWords(sttResult.Segments)
	p.progress(ctx, jobID, 60, "Transcription complete")

	var rawDiarization []models.SpeakerSegment
	if transcription.SpeakerLabels {
		p.progress(ctx, jobID, 70, "Diarizing speakers")
		opts := diarizationOptions(job.Params)
		diaResult, err := p.backends.Diarization().Diarize(ctx, audioPath, opts)
		if err != nil {
			return fmt.Errorf("diarization backend: %w", err)
		}
		rawDiarization = convertDiarization(diaResult.Segments)
	}

	utterances, relabeled := align.Align(sttResult.Text, words, rawDiarization, align.Options{})

	p.progress(ctx, jobID, 90, "Finalizing result")

	transcription.Text = &sttResult.Text
	transcription.Words = words
	transcription.Segments = segments
	lang := sttResult.DetectedLanguage
	transcription.DetectedLanguage = &lang
	conf := sttResult.LanguageConfidence
	transcription.LanguageConfidence = &conf

	if len(relabeled) > 0 {
		transcription.DiarizationSegments = relabeled
		transcription.Utterances = utterances
		transcription.Speakers = speakerList(relabeled)
		transcription.SpeakerStats = align.SpeakerStats(relabeled)
		transcription.Overlaps = align.DetectOverlaps(relabeled)
	}
	completedAt := time.Now()
	transcription.CompletedAt = &completedAt

	if err := p.transcriptions.UpdateResult(ctx, transcription); err != nil {
		return fmt.Errorf("commit transcription: %w", err)
	}

	if err := p.jobs.MarkCompleted(ctx, jobID, completedAt); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if p.events != nil {
		p.events.Broadcast(jobID, "completed", map[string]interface{}{"progress": 100})
	}

	p.dispatchWebhook(ctx, jobID)
	return nil
}

func (p *Processor) progress(ctx context.Context, jobID string, pct int, message string) {
	if err := p.jobs.UpdateProgress(ctx, jobID, pct, message); err != nil {
		logger.Warn("failed to record progress", "job_id", jobID, "error", err)
	}
	if p.events != nil {
		p.events.Broadcast(jobID, "progress", map[string]interface{}{"progress": pct, "message": message})
	}
}

func (p *Processor) fail(ctx context.Context, jobID, code string, cause error) {
	message := "internal error"
	if cause != nil {
		message = cause.Error()
	}
	if err := p.jobs.MarkFailed(ctx, jobID, code, message); err != nil {
		logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
	if p.events != nil {
		p.events.Broadcast(jobID, "failed", map[string]interface{}{"error_code": code, "error_message": message})
	}
	p.dispatchWebhook(ctx, jobID)
}

func (p *Processor) dispatchWebhook(ctx context.Context, jobID string) {
	job, err := p.jobs.FindByID(ctx, jobID)
	if err != nil || job.WebhookURL == nil || *job.WebhookURL == "" || p.webhooks == nil {
		return
	}
	go func() {
		if err := p.webhooks.Deliver(context.Background(), job.ID, *job.WebhookURL, webhook.PayloadFor(job)); err != nil {
			logger.Warn("webhook delivery failed", "job_id", job.ID, "error", err)
		}
	}()
}

// materializeAudio resolves the transcription's source (a blob key or
// a remote URL) to a local temp file and returns a cleanup func that
// must run on every exit path.
func (p *Processor) materializeAudio(ctx context.Context, t *models.Transcription) (string, func(), error) {
	tmp, err := os.CreateTemp("", "apilexia-audio-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if t.BlobKey != nil {
		r, err := p.blobs.Get(*t.BlobKey)
		if err != nil {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("read blob: %w", err)
		}
		defer r.Close()
		if _, err := io.Copy(tmp, r); err != nil {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("copy blob to temp file: %w", err)
		}
	} else if t.SourceURL != nil {
		dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, *t.SourceURL, nil)
		if err != nil {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("build download request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("download source audio: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("source audio returned %d", resp.StatusCode)
		}
		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			cleanup()
			return "", func() {}, fmt.Errorf("copy downloaded audio to temp file: %w", err)
		}
	} else {
		tmp.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("transcription %s has neither blob_key nor source_url", t.JobID)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

func convertWords(words []backend.STTWord) models.JSONList[models.Word] {
	if len(words) == 0 {
		return nil
	}
	out := make([]models.Word, len(words))
	for i, w := range words {
		out[i] = models.Word{
			Text:       w.Text,
			StartMS:    secondsToMS(w.Start),
			EndMS:      secondsToMS(w.End),
			Confidence: w.Confidence,
		}
	}
	return out
}

func convertDiarization(segments []backend.DiarizationSegment) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, len(segments))
	for i, s := range segments {
		out[i] = models.SpeakerSegment{
			Speaker:    s.Speaker,
			StartMS:    secondsToMS(s.Start),
			EndMS:      secondsToMS(s.End),
			Confidence: s.Confidence,
		}
	}
	return out
}

func secondsToMS(s float64) int {
	return int(math.Round(s * 1000))
}

func speakerList(segments []models.SpeakerSegment) models.StringList {
	seen := map[string]bool{}
	var out []string
	for _, s := range segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			out = append(out, s.Speaker)
		}
	}
	return out
}

func diarizationOptions(params models.StringMap) backend.DiarizationOptions {
	var opts backend.DiarizationOptions
	if v, ok := params["num_speakers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.NumSpeakers = &n
		}
	}
	if v, ok := params["min_speakers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MinSpeakers = &n
		}
	}
	if v, ok := params["max_speakers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxSpeakers = &n
		}
	}
	return opts
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
