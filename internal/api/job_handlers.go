package api

import (
	"net/http"
	"strconv"

	"github.com/subraAntoine/apilexia/internal/align"
	"github.com/subraAntoine/apilexia/internal/apierror"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ListJobs returns the caller's jobs, optionally filtered by status
// and job type, paginated with limit (capped at 100) and offset.
func (h *Handler) ListJobs(c *gin.Context) {
	var status *models.JobStatus
	if v := c.Query("status"); v != "" {
		s := models.JobStatus(v)
		status = &s
	}
	var jobType *models.JobType
	if v := c.Query("job_type"); v != "" {
		t := models.JobType(v)
		jobType = &t
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	jobs, total, err := h.services.ListJobs(c.Request.Context(), middleware.PrincipalFrom(c), status, jobType, offset, limit)
	if err != nil {
		apierror.Internal(err).Respond(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": total})
}

// GetJob returns the full current job view.
func (h *Handler) GetJob(c *gin.Context) {
	job, aerr := h.services.GetJob(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob implements DELETE /v1/jobs/{id}: cancellable only from
// pending/queued.
func (h *Handler) CancelJob(c *gin.Context) {
	aerr := h.services.CancelJob(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetJobRTTM serves the RTTM rendering of a diarization job's segments.
func (h *Handler) GetJobRTTM(c *gin.Context) {
	jobID := c.Param("id")
	job, aerr := h.services.GetJob(c.Request.Context(), middleware.PrincipalFrom(c), jobID)
	if aerr != nil {
		aerr.Respond(c)
		return
	}
	transcription, err := h.services.Transcriptions.FindByJobID(c.Request.Context(), job.ID)
	if err != nil {
		apierror.NotFound("transcription").Respond(c)
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, align.RTTM(job.ID, transcription.DiarizationSegments))
}

// JobEvents streams progress updates for a job over server-sent events.
func (h *Handler) JobEvents(c *gin.Context) {
	jobID := c.Param("id")
	if _, aerr := h.services.GetJob(c.Request.Context(), middleware.PrincipalFrom(c), jobID); aerr != nil {
		aerr.Respond(c)
		return
	}
	c.Request.URL.RawQuery = "job_id=" + jobID
	h.services.Events.ServeHTTP(c.Writer, c.Request)
}
