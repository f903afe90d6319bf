package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/audit"
	"github.com/eduexamportal/mailroom/internal/mailer"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MailService records outbound mail requests and hands them to the workers.
type MailService struct {
	db    *gorm.DB
	queue queue.Queue
}

// NewMailService creates a new MailService.
func NewMailService(db *gorm.DB, q queue.Queue) *MailService {
	return &MailService{db: db, queue: q}
}

// Send validates req, stores a pending job and enqueues it. The template is
// chosen when the job runs.
func (s *MailService) Send(ctx context.Context, caller access.Caller, req SendRequest) (*models.Job, error) {
	t := access.TemplateType(req.TemplateType)
	if !t.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid template_type: %s", req.TemplateType)}
	}
	if _, err := access.SlotFor(t); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	recipient := strings.TrimSpace(req.Recipient)
	if err := mailer.ValidateAddress(recipient); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if strings.TrimSpace(req.Variables.InviteURL) == "" {
		return nil, &ValidationError{Message: "variables.inviteUrl is required"}
	}

	job := &models.Job{
		SenderID:     caller.ID,
		Type:         models.JobTypeSendEmail,
		Status:       models.JobStatusPending,
		TemplateType: string(t),
		Recipient:    recipient,
		Variables:    req.Variables,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		s.db.Model(job).Updates(map[string]interface{}{
			"status": models.JobStatusFailed,
			"error":  "could not enqueue: " + err.Error(),
		})
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	audit.Record(s.db, caller.ID, audit.ActionSendMail, fmt.Sprintf("job:%s", job.ID), map[string]interface{}{
		"template_type": job.TemplateType,
		"recipient":     job.Recipient,
	})
	return job, nil
}

// GetJob returns a job its sender (or an admin) may look at.
func (s *MailService) GetJob(ctx context.Context, caller access.Caller, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.SenderID != caller.ID && !caller.Role.IsAdmin() {
		return nil, ErrNotFound
	}
	return &job, nil
}
