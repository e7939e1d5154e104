package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/subraAntoine/apilexia/internal/models"

	"github.com/stretchr/testify/assert"
)

func init() {
	retryDelay = time.Millisecond
}

func TestDeliver(t *testing.T) {
	service := NewService(nil)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "apilexia-webhook/1.0", r.Header.Get("User-Agent"))

			var payload Payload
			err := json.NewDecoder(r.Body).Decode(&payload)
			assert.NoError(t, err)
			assert.Equal(t, "job-123", payload.JobID)
			assert.Equal(t, "job.completed", payload.Event)
			assert.Equal(t, models.StatusCompleted, payload.Status)

			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		payload := Payload{
			Event:  "job.completed",
			JobID:  "job-123",
			Status: models.StatusCompleted,
		}

		err := service.Deliver(ctx, "job-123", server.URL, payload)
		assert.NoError(t, err)
	})

	t.Run("RetryThenSucceed", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := service.Deliver(ctx, "job-retry", server.URL, Payload{JobID: "job-retry", Status: models.StatusFailed})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("FailureAfterRetries", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := service.Deliver(ctx, "job-fail", server.URL, Payload{JobID: "job-fail"})

		assert.Error(t, err)
		assert.Equal(t, maxAttempts, attempts)
	})

	t.Run("EmptyURL", func(t *testing.T) {
		err := service.Deliver(ctx, "job-noop", "", Payload{})
		assert.NoError(t, err)
	})
}

func TestPayloadFor(t *testing.T) {
	completedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	errCode := "stt_service_error"
	errMsg := "backend unreachable"

	job := &models.Job{
		ID:           "job-1",
		Type:         models.JobTypeTranscription,
		Status:       models.StatusFailed,
		CompletedAt:  &completedAt,
		ErrorCode:    &errCode,
		ErrorMessage: &errMsg,
	}

	payload := PayloadFor(job)

	assert.Equal(t, "job.failed", payload.Event)
	assert.Equal(t, "job-1", payload.JobID)
	require := assert.New(t)
	require.NotNil(payload.Error)
	require.Equal("stt_service_error", payload.Error.Code)
	require.NotNil(payload.CompletedAt)
}
