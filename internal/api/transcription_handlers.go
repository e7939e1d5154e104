package api

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type submitTranscriptionResponse struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	AudioURL  *string `json:"audio_url,omitempty"`
}

// SubmitTranscription ingests an audio upload or URL, creates the job,
// and enqueues it; returns immediately with status=queued.
func (h *Handler) SubmitTranscription(c *gin.Context) {
	file, filename, err := openUpload(c, "audio")
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	if file != nil {
		defer file.Close()
	}

	job, aerr := h.services.Dispatcher.SubmitTranscription(c.Request.Context(), dispatch.TranscriptionRequest{
		Audio:            dispatch.AudioSource{File: file, Filename: filename, URL: c.PostForm("audio_url")},
		LanguageCode:     c.PostForm("language_code"),
		SpeakerLabels:    getFormBoolWithDefault(c, "speaker_labels", false),
		SpeakersExpected: getFormIntPtr(c, "speakers_expected"),
		WebhookURL:       c.PostForm("webhook_url"),
		Principal:        middleware.PrincipalFrom(c),
		CredentialID:     middleware.CredentialFrom(c).ID,
	})
	if aerr != nil {
		aerr.Respond(c)
		return
	}

	resp := submitTranscriptionResponse{ID: job.ID, Status: "queued", CreatedAt: job.CreatedAt.Format(time.RFC3339)}
	transcription, err := h.services.Transcriptions.FindByJobID(c.Request.Context(), job.ID)
	if err == nil {
		resp.AudioURL = transcription.SourceURL
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetTranscription returns the full current transcription view, hiding
// ownership exactly as GetJob does.
func (h *Handler) GetTranscription(c *gin.Context) {
	transcription, aerr := h.services.GetTranscription(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	c.JSON(http.StatusOK, transcription)
}

// DeleteTranscription removes the transcription row and its audio blob.
func (h *Handler) DeleteTranscription(c *gin.Context) {
	aerr := h.services.DeleteTranscription(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitTranscriptionSync runs the transcription pipeline inline and
// returns the result without persisting a Job or Transcription row.
func (h *Handler) SubmitTranscriptionSync(c *gin.Context) {
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

	language := c.PostForm("language_code")
	sttResult, err := h.services.Backends.STT().Transcribe(c.Request.Context(), tmp, language, true)
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}

	words := convertSTTWords(sttResult.Words)

	c.JSON(http.StatusOK, gin.H{
		"text":                sttResult.Text,
		"words":               words,
		"detected_language":   sttResult.DetectedLanguage,
		"language_confidence": sttResult.LanguageConfidence,
	})
}

// materializeSyncUpload streams an in-memory-bounded upload to a temp
// file, rejecting it once it exceeds maxBytes without buffering the
// whole body first.
func materializeSyncUpload(file io.Reader, filename string, maxBytes int64) (string, *apierror.Error) {
	if !supportedSyncFormat(filename) {
		return "", apierror.Validation("unsupported audio format", "audio", "invalid_audio_format")
	}
	tmp, err := os.CreateTemp("", "apilexia-sync-*")
	if err != nil {
		return "", apierror.Internal(err)
	}
	defer tmp.Close()

	written, err := io.Copy(tmp, io.LimitReader(file, maxBytes+1))
	if err != nil {
		os.Remove(tmp.Name())
		return "", apierror.Internal(err)
	}
	if written > maxBytes {
		os.Remove(tmp.Name())
		return "", apierror.FileTooLarge()
	}
	return tmp.Name(), nil
}
