package api

import (
	"net/http"
	"os"
	"time"

	"github.com/subraAntoine/apilexia/internal/align"
	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/backend"
	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type submitDiarizationResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// SubmitDiarization ingests an audio upload or URL, creates a
// diarization-typed job, and enqueues it.
func (h *Handler) SubmitDiarization(c *gin.Context) {
	file, filename, err := openUpload(c, "audio")
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	if file != nil {
		defer file.Close()
	}

	job, aerr := h.services.Dispatcher.SubmitDiarization(c.Request.Context(), dispatch.DiarizationRequest{
		Audio:        dispatch.AudioSource{File: file, Filename: filename, URL: c.PostForm("audio_url")},
		NumSpeakers:  getFormIntPtr(c, "num_speakers"),
		MinSpeakers:  getFormIntPtr(c, "min_speakers"),
		MaxSpeakers:  getFormIntPtr(c, "max_speakers"),
		WebhookURL:   c.PostForm("webhook_url"),
		Principal:    middleware.PrincipalFrom(c),
		CredentialID: middleware.CredentialFrom(c).ID,
	})
	if aerr != nil {
		aerr.Respond(c)
		return
	}

	c.JSON(http.StatusAccepted, submitDiarizationResponse{ID: job.ID, Status: "queued", CreatedAt: job.CreatedAt.Format(time.RFC3339)})
}

// GetDiarization returns the full current diarization view; a
// diarization job's result lives on the same Transcription row a
// transcription job's does.
func (h *Handler) GetDiarization(c *gin.Context) {
	transcription, aerr := h.services.GetTranscription(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	c.JSON(http.StatusOK, transcription)
}

// SubmitDiarizationSync runs the diarization pipeline inline without
// persisting a Job or Transcription row.
func (h *Handler) SubmitDiarizationSync(c *gin.Context) {
	file, filename, err := openUpload(c, "audio")
	if err != nil || file == nil {
		apierror.Validation("audio upload is required for the sync endpoint", "audio", "").Respond(c)
		return
	}
	defer file.Close()

	maxBytes := int64(h.services.Config.MaxSyncFileMB) * 1024 * 1024
	tmp, aerr := materializeSyncUpload(file, filename, maxBytes)
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	defer os.Remove(tmp)

	opts := backend.DiarizationOptions{
		NumSpeakers: getFormIntPtr(c, "num_speakers"),
		MinSpeakers: getFormIntPtr(c, "min_speakers"),
		MaxSpeakers: getFormIntPtr(c, "max_speakers"),
	}
	diaResult, err := h.services.Backends.Diarization().Diarize(c.Request.Context(), tmp, opts)
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}

	raw := convertDiarizationSegments(diaResult.Segments)
	_, relabeled := align.Align("", nil, raw, align.Options{})

	c.JSON(http.StatusOK, gin.H{
		"segments": relabeled,
		"stats":    align.SpeakerStats(relabeled),
		"overlaps": align.DetectOverlaps(relabeled),
	})
}
