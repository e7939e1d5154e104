package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType identifies the kind of work a Job represents.
type JobType string

const (
	JobTypeTranscription             JobType = "transcription"
	JobTypeDiarization                JobType = "diarization"
	JobTypeTranscriptionDiarization  JobType = "transcription+diarization"
)

// JobStatus is a node in the job lifecycle DAG (see Job.CanTransitionTo).
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Job is a durable unit of asynchronous work. It owns a lifecycle and a
// result slot; mutated exclusively by the worker that owns the
// dispatched task or by an explicit cancel from the owning principal.
type Job struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Type           JobType    `json:"job_type" gorm:"type:varchar(32);not null;index"`
	Status         JobStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Params         StringMap  `json:"params" gorm:"type:text"`
	Principal      string     `json:"-" gorm:"type:varchar(100);not null;index:idx_jobs_principal_created"`
	CredentialID   string     `json:"-" gorm:"type:varchar(36);not null"`
	WebhookURL     *string    `json:"webhook_url,omitempty" gorm:"type:text"`
	QueueHandle    *string    `json:"-" gorm:"type:varchar(64)"`
	Progress       int        `json:"progress" gorm:"not null;default:0"`
	ProgressMsg    string     `json:"progress_message,omitempty" gorm:"type:text"`
	ResultURL      *string    `json:"result_url,omitempty" gorm:"type:text"`
	ErrorCode      *string    `json:"error_code,omitempty" gorm:"type:varchar(64)"`
	ErrorMessage   *string    `json:"error_message,omitempty" gorm:"type:text"`
	WebhookSent    bool       `json:"webhook_delivered" gorm:"not null;default:false"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime;index:idx_jobs_principal_created"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// jobTransitions enumerates the DAG edges permitted in the job lifecycle.
var jobTransitions = map[JobStatus][]JobStatus{
	StatusPending:    {StatusQueued, StatusCancelled},
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether moving from j.Status to next is a
// permitted edge in the job state machine.
func (j *Job) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[j.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job's status will never change again.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether the job may still be cancelled: only
// pending or queued jobs, before a worker has claimed them.
func (j *Job) IsCancellable() bool {
	return j.Status == StatusPending || j.Status == StatusQueued
}
