package api

import (
	"net/http"

	"github.com/subraAntoine/apilexia/internal/systeminfo"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

// HealthCheck reports process liveness plus compute-backend
// reachability and worker pool occupancy, not just {status:"ok"}.
func (h *Handler) HealthCheck(c *gin.Context) {
	cfg := h.services.Config
	services := gin.H{
		"stt_backend":         systeminfo.CheckBackend(cfg.STTBackendURL),
		"diarization_backend": systeminfo.CheckBackend(cfg.DiarizationBackendURL),
		"queue":               h.services.Queue.Stats(),
	}

	host := gin.H{}
	if bytes, err := systeminfo.TotalMemoryBytes(); err == nil {
		host["total_memory_bytes"] = bytes
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  apiVersion,
		"services": services,
		"host":     host,
	})
}
