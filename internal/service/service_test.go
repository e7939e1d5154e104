package service

import (
	"context"
	"testing"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	dbPath := t.TempDir() + "/service_test.db"
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })

	cfg := &config.Config{
		TokenSalt:       "salt",
		TokenPrefix:     "lx_",
		DefaultQuota:    60,
		UploadDir:       t.TempDir(),
		MaxUploadSizeMB: 10,
	}
	svc, err := New(cfg, database.DB)
	require.NoError(t, err)
	return svc
}

func seedJob(t *testing.T, svc *Services, principal string, status models.JobStatus) string {
	t.Helper()
	job := &models.Job{
		Type:         models.JobTypeTranscription,
		Status:       status,
		Principal:    principal,
		CredentialID: "cred-1",
	}
	require.NoError(t, svc.Jobs.CreateWithTranscription(context.Background(), job, &models.Transcription{Principal: principal}))
	return job.ID
}

func TestCancelJobPending(t *testing.T) {
	svc := newTestServices(t)
	jobID := seedJob(t, svc, "principal-1", models.StatusPending)

	aerr := svc.CancelJob(context.Background(), "principal-1", jobID)
	assert.Nil(t, aerr)

	job, err := svc.Jobs.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, job.Status)
}

func TestCancelJobProcessingFails(t *testing.T) {
	svc := newTestServices(t)
	jobID := seedJob(t, svc, "principal-1", models.StatusProcessing)

	aerr := svc.CancelJob(context.Background(), "principal-1", jobID)
	require.NotNil(t, aerr)
	assert.Equal(t, "job_not_cancellable", aerr.Code)
}

func TestCancelJobWrongOwnerHidesExistence(t *testing.T) {
	svc := newTestServices(t)
	jobID := seedJob(t, svc, "principal-1", models.StatusPending)

	aerr := svc.CancelJob(context.Background(), "principal-2", jobID)
	require.NotNil(t, aerr)
	assert.Equal(t, "job_not_found", aerr.Code)
}

func TestGetJobOwnershipHiding(t *testing.T) {
	svc := newTestServices(t)
	jobID := seedJob(t, svc, "principal-1", models.StatusCompleted)

	_, aerr := svc.GetJob(context.Background(), "principal-2", jobID)
	require.NotNil(t, aerr)
	assert.Equal(t, 404, aerr.Status)

	job, aerr := svc.GetJob(context.Background(), "principal-1", jobID)
	require.Nil(t, aerr)
	assert.Equal(t, jobID, job.ID)
}

func TestDeleteTranscription(t *testing.T) {
	svc := newTestServices(t)
	jobID := seedJob(t, svc, "principal-1", models.StatusCompleted)

	aerr := svc.DeleteTranscription(context.Background(), "principal-1", jobID)
	assert.Nil(t, aerr)

	_, err := svc.Jobs.FindByID(context.Background(), jobID)
	assert.Error(t, err)
}

func TestListJobs(t *testing.T) {
	svc := newTestServices(t)
	seedJob(t, svc, "principal-1", models.StatusPending)
	seedJob(t, svc, "principal-1", models.StatusCompleted)
	seedJob(t, svc, "principal-2", models.StatusPending)

	jobs, count, err := svc.ListJobs(context.Background(), "principal-1", nil, nil, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.Len(t, jobs, 2)
}
