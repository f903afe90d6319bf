package models

import (
	"time"

	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType represents the type of job
type JobType string

const (
	JobTypeSendEmail JobType = "send_email"
)

// JobStatus represents the state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is an outbound mail request and its delivery state. The sender's
// active template for TemplateType is resolved when the job runs, not when it
// is queued.
type Job struct {
	ID           uuid.UUID        `gorm:"type:text;primary_key" json:"id"`
	SenderID     uuid.UUID        `gorm:"type:text;index;not null" json:"sender_id"`
	Type         JobType          `gorm:"not null" json:"type"`
	Status       JobStatus        `gorm:"not null;default:'pending';index" json:"status"`
	TemplateType string           `gorm:"not null" json:"template_type"`
	Recipient    string           `gorm:"not null" json:"recipient_email"`
	Variables    render.Variables `gorm:"serializer:json" json:"variables"`
	TemplateID   *uuid.UUID       `gorm:"type:text" json:"template_id,omitempty"`
	Subject      string           `json:"subject,omitempty"`
	Logs         string           `gorm:"type:text" json:"logs"`
	Error        string           `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
