package repository

import (
	"context"
	"time"

	"github.com/subraAntoine/apilexia/internal/models"

	"gorm.io/gorm"
)

// CredentialRepository handles credential CRUD and lookup by hash.
type CredentialRepository interface {
	Repository[models.Credential]
	FindByHash(ctx context.Context, hash string) (*models.Credential, error)
	ListByPrincipal(ctx context.Context, principal string) ([]models.Credential, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	SetRevoked(ctx context.Context, id string, revoked bool) error
}

type credentialRepository struct {
	*BaseRepository[models.Credential]
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{BaseRepository: NewBaseRepository[models.Credential](db)}
}

func (r *credentialRepository) FindByHash(ctx context.Context, hash string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).Where("key_hash = ?", hash).First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) ListByPrincipal(ctx context.Context, principal string) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.WithContext(ctx).Where("principal = ?", principal).Order("created_at DESC").Find(&creds).Error
	return creds, err
}

func (r *credentialRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).Update("last_used_at", at).Error
}

func (r *credentialRepository) SetRevoked(ctx context.Context, id string, revoked bool) error {
	return r.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).Update("revoked", revoked).Error
}

// JobRepository handles Job CRUD, status transitions and listing.
type JobRepository interface {
	Repository[models.Job]
	ListByPrincipal(ctx context.Context, principal string, status *models.JobStatus, jobType *models.JobType, offset, limit int) ([]models.Job, int64, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus) error
	UpdateProgress(ctx context.Context, id string, percent int, message string) error
	SetQueueHandle(ctx context.Context, id string, handle string) error
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id string, code, message string) error
	MarkWebhookSent(ctx context.Context, id string) error
	PendingWebhooks(ctx context.Context, limit int) ([]models.Job, error)
	ListPending(ctx context.Context, limit int) ([]models.Job, error)
	CreateWithTranscription(ctx context.Context, job *models.Job, transcription *models.Transcription) error
}

type jobRepository struct {
	*BaseRepository[models.Job]
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{BaseRepository: NewBaseRepository[models.Job](db)}
}

func (r *jobRepository) ListByPrincipal(ctx context.Context, principal string, status *models.JobStatus, jobType *models.JobType, offset, limit int) ([]models.Job, int64, error) {
	var jobs []models.Job
	var count int64

	db := r.db.WithContext(ctx).Model(&models.Job{}).Where("principal = ?", principal)
	if status != nil {
		db = db.Where("status = ?", *status)
	}
	if jobType != nil {
		db = db.Where("type = ?", *jobType)
	}

	if err := db.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, count, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Update("status", status).Error
}

func (r *jobRepository) UpdateProgress(ctx context.Context, id string, percent int, message string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":     percent,
		"progress_msg": message,
	}).Error
}

func (r *jobRepository) SetQueueHandle(ctx context.Context, id string, handle string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"queue_handle": handle,
		"status":       models.StatusQueued,
	}).Error
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.StatusCompleted,
		"progress":     100,
		"completed_at": completedAt,
	}).Error
}

func (r *jobRepository) MarkFailed(ctx context.Context, id string, code, message string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.StatusFailed,
		"error_code":    code,
		"error_message": message,
	}).Error
}

func (r *jobRepository) MarkWebhookSent(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Update("webhook_sent", true).Error
}

func (r *jobRepository) PendingWebhooks(ctx context.Context, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where("webhook_url IS NOT NULL AND webhook_sent = ? AND status IN ?", false, []models.JobStatus{models.StatusCompleted, models.StatusFailed}).
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) ListPending(ctx context.Context, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).Where("status = ?", models.StatusPending).Limit(limit).Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) CreateWithTranscription(ctx context.Context, job *models.Job, transcription *models.Transcription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if transcription != nil {
			transcription.JobID = job.ID
			if err := tx.Create(transcription).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// TranscriptionRepository handles Transcription CRUD, looked up by the
// owning job's id; the Job row stores no back-reference to its
// Transcription.
type TranscriptionRepository interface {
	Repository[models.Transcription]
	FindByJobID(ctx context.Context, jobID string) (*models.Transcription, error)
	UpdateResult(ctx context.Context, t *models.Transcription) error
}

type transcriptionRepository struct {
	*BaseRepository[models.Transcription]
}

func NewTranscriptionRepository(db *gorm.DB) TranscriptionRepository {
	return &transcriptionRepository{BaseRepository: NewBaseRepository[models.Transcription](db)}
}

func (r *transcriptionRepository) FindByJobID(ctx context.Context, jobID string) (*models.Transcription, error) {
	var t models.Transcription
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transcriptionRepository) UpdateResult(ctx context.Context, t *models.Transcription) error {
	return r.db.WithContext(ctx).Save(t).Error
}
