package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/mailer"
	"github.com/eduexamportal/mailroom/internal/metrics"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Worker delivers queued mail jobs
type Worker struct {
	db         *gorm.DB
	queue      queue.Queue
	templates  *service.TemplateService
	renderer   *render.Renderer
	mailer     mailer.Mailer
	logger     *slog.Logger
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
}

// New creates a new worker instance
func New(db *gorm.DB, q queue.Queue, templates *service.TemplateService, r *render.Renderer, m mailer.Mailer, logger *slog.Logger, maxWorkers int) *Worker {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Worker{
		db:         db,
		queue:      q,
		templates:  templates,
		renderer:   r,
		mailer:     m,
		logger:     logger,
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Start processes jobs until ctx is cancelled or the queue is closed, then
// waits for in-flight jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started", "max_concurrent_jobs", w.maxWorkers, "mailer", w.mailer.Name())
	defer func() {
		w.logger.Info("Worker shutting down, waiting for jobs to complete")
		w.wg.Wait()
		w.logger.Info("All jobs completed, worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		jobID, err := w.queue.Dequeue(ctx)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrEmpty):
			continue
		case errors.Is(err, queue.ErrClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			w.logger.Error("Failed to dequeue job", "error", err)
			time.Sleep(time.Second)
			continue
		}

		select {
		case w.semaphore <- struct{}{}:
			w.wg.Add(1)
			go func(id uuid.UUID) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()
				w.ProcessJob(ctx, id)
			}(jobID)
		case <-ctx.Done():
			w.logger.Info("Context cancelled while waiting for worker slot", "job_id", jobID)
			return ctx.Err()
		}
	}
}

// ProcessJob runs one job to completion. Jobs that are no longer pending are
// skipped, so a job delivered twice is sent once.
func (w *Worker) ProcessJob(ctx context.Context, jobID uuid.UUID) {
	var job models.Job
	if err := w.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		w.logger.Error("Failed to load job", "job_id", jobID, "error", err)
		return
	}

	// Claim the job; another worker may have raced us.
	now := time.Now()
	claim := w.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": now})
	if claim.Error != nil {
		w.logger.Error("Failed to claim job", "job_id", jobID, "error", claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		w.logger.Info("Skipping job that is no longer pending", "job_id", jobID, "status", job.Status)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic recovered in ProcessJob", "job_id", jobID, "panic", r)
			w.finish(jobID, models.JobStatusFailed, fmt.Sprintf("Job panicked: %v", r), nil)
		}
	}()

	w.logger.Info("Processing job", "job_id", jobID, "type", job.Type, "template_type", job.TemplateType)

	result, err := w.deliver(ctx, &job)
	if err != nil {
		w.logger.Error("Job failed", "job_id", jobID, "error", err)
		w.finish(jobID, models.JobStatusFailed, err.Error(), result)
		return
	}
	w.logger.Info("Job completed", "job_id", jobID, "template_id", result.templateID)
	w.finish(jobID, models.JobStatusCompleted, "", result)
}

type delivery struct {
	templateID uuid.UUID
	subject    string
	logs       []string
}

func (w *Worker) deliver(ctx context.Context, job *models.Job) (*delivery, error) {
	d := &delivery{}

	var sender models.User
	if err := w.db.WithContext(ctx).Where("id = ?", job.SenderID).First(&sender).Error; err != nil {
		return d, fmt.Errorf("load sender: %w", err)
	}
	if sender.Deleted {
		return d, errors.New("sender account is disabled")
	}

	tpl, err := w.templates.ResolveForSending(ctx, &sender, access.TemplateType(job.TemplateType))
	if err != nil {
		return d, fmt.Errorf("resolve template: %w", err)
	}
	d.templateID = tpl.ID
	d.logs = append(d.logs, fmt.Sprintf("using template %s (%s)", tpl.ID, tpl.TemplateName))

	email, err := w.renderer.Render(render.Template{Subject: tpl.Subject, MainMessage: tpl.MainMessage}, job.Variables)
	if err != nil {
		metrics.RendersTotal.WithLabelValues("worker", "error").Inc()
		return d, err
	}
	metrics.RendersTotal.WithLabelValues("worker", "ok").Inc()
	d.subject = email.Subject

	toName := strings.TrimSpace(render.TitleCase(job.Variables.FirstName) + " " + render.TitleCase(job.Variables.LastName))
	err = w.mailer.Send(ctx, mailer.Message{
		To:      job.Recipient,
		ToName:  toName,
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if err != nil {
		return d, fmt.Errorf("send via %s: %w", w.mailer.Name(), err)
	}
	d.logs = append(d.logs, fmt.Sprintf("sent via %s", w.mailer.Name()))
	return d, nil
}

// finish records the terminal state. It uses a fresh context so a shutdown
// in progress does not leave the job stuck in running.
func (w *Worker) finish(jobID uuid.UUID, status models.JobStatus, errMsg string, d *delivery) {
	updates := map[string]interface{}{
		"status":       status,
		"error":        errMsg,
		"completed_at": time.Now(),
	}
	if d != nil {
		if d.templateID != uuid.Nil {
			updates["template_id"] = d.templateID
		}
		updates["subject"] = d.subject
		updates["logs"] = strings.Join(d.logs, "\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		w.logger.Error("Failed to record job result", "job_id", jobID, "error", err)
	}
}

// RequeuePending puts every job still pending back on the queue. Jobs held
// only in a memory queue are lost on restart; their rows are not.
func (w *Worker) RequeuePending(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	err := w.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}

	for i, id := range ids {
		if err := w.queue.Enqueue(ctx, id); err != nil {
			return i, fmt.Errorf("requeue job %s: %w", id, err)
		}
	}
	if len(ids) > 0 {
		w.logger.Info("Requeued pending jobs", "count", len(ids))
	}
	return len(ids), nil
}
