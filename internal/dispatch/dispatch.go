// Package dispatch implements ingestion validation and the Dispatcher:
// it resolves an audio upload or URL to a blob-store reference, inserts
// the Job (and Transcription) row in one transaction, and enqueues the
// task onto the worker runtime's task queue.
package dispatch

import (
	"context"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/blobstore"
	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/queue"
	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

var supportedFormats = map[string]bool{
	"wav": true, "mp3": true, "m4a": true, "flac": true, "ogg": true, "webm": true,
}

// AudioSource carries the ingestion-time audio input: a multipart file
// XOR a remote URL, never both, never neither.
type AudioSource struct {
	File     multipart.File
	Filename string
	URL      string
}

// TranscriptionRequest is the validated-shape input to SubmitTranscription.
type TranscriptionRequest struct {
	Audio            AudioSource
	LanguageCode     string
	SpeakerLabels    bool
	SpeakersExpected *int
	WebhookURL       string
	Principal        string
	CredentialID     string
}

// DiarizationRequest is the validated-shape input to SubmitDiarization.
type DiarizationRequest struct {
	Audio        AudioSource
	NumSpeakers  *int
	MinSpeakers  *int
	MaxSpeakers  *int
	WebhookURL   string
	Principal    string
	CredentialID string
}

// Dispatcher validates ingestion requests and hands work to the queue.
type Dispatcher struct {
	blobs *blobstore.Store
	jobs  repository.JobRepository
	queue *queue.TaskQueue
	cfg   *config.Config
}

func NewDispatcher(blobs *blobstore.Store, jobs repository.JobRepository, q *queue.TaskQueue, cfg *config.Config) *Dispatcher {
	return &Dispatcher{blobs: blobs, jobs: jobs, queue: q, cfg: cfg}
}

// SubmitTranscription validates the request, stores the audio, inserts
// the job+transcription row, and enqueues the task.
func (d *Dispatcher) SubmitTranscription(ctx context.Context, req TranscriptionRequest) (*models.Job, *apierror.Error) {
	blobKey, sourceURL, aerr := d.resolveAudio(req.Audio)
	if aerr != nil {
		return nil, aerr
	}

	params := models.StringMap{}
	if req.LanguageCode != "" {
		params["language"] = req.LanguageCode
	}
	if req.SpeakerLabels {
		params["speaker_labels"] = "true"
	}
	if req.SpeakersExpected != nil {
		params["speakers_expected"] = strconv.Itoa(*req.SpeakersExpected)
	}

	job := &models.Job{
		Type:         models.JobTypeTranscription,
		Status:       models.StatusPending,
		Params:       params,
		Principal:    req.Principal,
		CredentialID: req.CredentialID,
	}
	if req.WebhookURL != "" {
		webhook := req.WebhookURL
		job.WebhookURL = &webhook
	}

	var lang *string
	if req.LanguageCode != "" {
		code := req.LanguageCode
		lang = &code
	}
	transcription := &models.Transcription{
		SourceURL:         sourceURL,
		BlobKey:           blobKey,
		Principal:         req.Principal,
		LanguageRequested: lang,
		SpeakerLabels:     req.SpeakerLabels,
	}

	if err := d.jobs.CreateWithTranscription(ctx, job, transcription); err != nil {
		return nil, apierror.Internal(err)
	}

	d.enqueue(ctx, job)
	return job, nil
}

// SubmitDiarization validates the request, stores the audio, inserts
// the job+transcription row, and enqueues the task.
func (d *Dispatcher) SubmitDiarization(ctx context.Context, req DiarizationRequest) (*models.Job, *apierror.Error) {
	blobKey, sourceURL, aerr := d.resolveAudio(req.Audio)
	if aerr != nil {
		return nil, aerr
	}

	params := models.StringMap{}
	if req.NumSpeakers != nil {
		params["num_speakers"] = strconv.Itoa(*req.NumSpeakers)
	}
	if req.MinSpeakers != nil {
		params["min_speakers"] = strconv.Itoa(*req.MinSpeakers)
	}
	if req.MaxSpeakers != nil {
		params["max_speakers"] = strconv.Itoa(*req.MaxSpeakers)
	}

	job := &models.Job{
		Type:         models.JobTypeDiarization,
		Status:       models.StatusPending,
		Params:       params,
		Principal:    req.Principal,
		CredentialID: req.CredentialID,
	}
	if req.WebhookURL != "" {
		webhook := req.WebhookURL
		job.WebhookURL = &webhook
	}

	transcription := &models.Transcription{
		SourceURL:     sourceURL,
		BlobKey:       blobKey,
		Principal:     req.Principal,
		SpeakerLabels: true,
	}

	if err := d.jobs.CreateWithTranscription(ctx, job, transcription); err != nil {
		return nil, apierror.Internal(err)
	}

	d.enqueue(ctx, job)
	return job, nil
}

// enqueue hands the job to the task queue and records the resulting
// opaque handle; a failure to enqueue leaves the job pending for the
// queue's own recovery scanner to pick up later.
func (d *Dispatcher) enqueue(ctx context.Context, job *models.Job) {
	if err := d.queue.EnqueueJob(job.ID); err != nil {
		logger.Warn("failed to enqueue job, leaving pending for scanner", "job_id", job.ID, "error", err)
		return
	}
	if err := d.jobs.SetQueueHandle(ctx, job.ID, job.ID); err != nil {
		logger.Warn("failed to persist queue handle", "job_id", job.ID, "error", err)
	}
}

// resolveAudio validates exactly-one-of(file, url), checks the format
// and, for an upload, streams it into the blob store while enforcing
// the configured size limit.
func (d *Dispatcher) resolveAudio(a AudioSource) (blobKey *string, sourceURL *string, aerr *apierror.Error) {
	hasFile := a.File != nil
	hasURL := a.URL != ""
	if hasFile == hasURL {
		return nil, nil, apierror.Validation("exactly one of an audio upload or audio_url must be provided", "audio", "missing_audio_source")
	}

	if hasURL {
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, nil, apierror.Validation("audio_url must be an http or https URL", "audio_url", "invalid_url_format")
		}
		if !supportedFormats[extensionOf(u.Path)] {
			return nil, nil, apierror.Validation("unsupported audio format", "audio_url", "invalid_audio_format")
		}
		source := a.URL
		return nil, &source, nil
	}

	ext := extensionOf(a.Filename)
	if !supportedFormats[ext] {
		return nil, nil, apierror.Validation("unsupported audio format", "audio", "invalid_audio_format")
	}

	key := d.blobs.GenerateKey("audio", ext)
	maxBytes := int64(d.cfg.MaxUploadSizeMB) * 1024 * 1024
	written, err := d.blobs.Put(key, io.LimitReader(a.File, maxBytes+1))
	if err != nil {
		return nil, nil, apierror.Internal(err)
	}
	if written > maxBytes {
		_ = d.blobs.Delete(key)
		return nil, nil, apierror.FileTooLarge()
	}
	return &key, nil, nil
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// SupportedFormat reports whether name's extension is one of the
// formats this system accepts, for callers outside this package that
// need the same check (the sync endpoints, which bypass the
// Dispatcher entirely).
func SupportedFormat(name string) bool {
	return supportedFormats[extensionOf(name)]
}
