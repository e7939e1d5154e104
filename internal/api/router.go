package api

import (
	"github.com/subraAntoine/apilexia/pkg/logger"
	"github.com/subraAntoine/apilexia/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the full gin engine: recovery, request logging,
// then the versioned route groups behind auth and rate-limit
// middleware.
func SetupRoutes(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CompressionMiddleware())

	router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowOrigin := "*"
		if h.services.Config.IsProduction() && len(h.services.Config.AllowedOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range h.services.Config.AllowedOrigins {
				if origin == allowed {
					allowOrigin = origin
					break
				}
			}
		} else if origin != "" {
			allowOrigin = origin
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Unauthenticated.
	router.GET("/health", h.HealthCheck)

	// API key management: unauthenticated by design, for bootstrapping
	// the first credential (an operator is expected to gate this
	// endpoint at the network layer in production).
	apiKeys := router.Group("/api-keys")
	{
		apiKeys.POST("", h.CreateAPIKey)
		apiKeys.GET("", h.ListAPIKeys)
		apiKeys.POST("/:id/revoke", h.RevokeAPIKey)
		apiKeys.DELETE("/:id", h.DeleteAPIKey)
	}

	auth := middleware.AuthMiddleware(h.services.Credentials)
	limit := middleware.RateLimitMiddleware(h.services.RateLimiter)

	v1 := router.Group("/v1")
	v1.Use(auth)
	{
		transcriptions := v1.Group("/transcriptions")
		{
			transcriptions.POST("", limit, h.SubmitTranscription)
			transcriptions.POST("/sync", limit, h.SubmitTranscriptionSync)
			transcriptions.GET("/:id", h.GetTranscription)
			transcriptions.DELETE("/:id", limit, h.DeleteTranscription)
		}

		diarization := v1.Group("/diarization")
		{
			diarization.POST("", limit, h.SubmitDiarization)
			diarization.POST("/sync", limit, h.SubmitDiarizationSync)
			diarization.GET("/:id", h.GetDiarization)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.ListJobs)
			jobs.GET("/:id", h.GetJob)
			jobs.DELETE("/:id", h.CancelJob)
			jobs.GET("/:id/rttm", h.GetJobRTTM)
			jobs.GET("/:id/events", h.JobEvents)
		}
	}

	return router
}
