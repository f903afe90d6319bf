package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/eduexamportal/mailroom/internal/mailer"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Name() string { return "fake" }

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type fixture struct {
	db     *gorm.DB
	queue  *queue.MemoryQueue
	mailer *fakeMailer
	worker *Worker
	sender *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	sender, err := db.CreateUser(gdb, db.NewUser{
		Username:  "tina",
		Email:     "tina@example.edu",
		Password:  "secret-password",
		FirstName: "Tina",
		Role:      access.RoleTeacher,
	})
	require.NoError(t, err)

	q := queue.NewMemoryQueue(8)
	fm := &fakeMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(gdb, q, service.NewTemplateService(gdb), render.New("Test Portal"), fm, logger, 2)
	return &fixture{db: gdb, queue: q, mailer: fm, worker: w, sender: sender}
}

func (f *fixture) pendingJob(t *testing.T) *models.Job {
	t.Helper()
	job := &models.Job{
		SenderID:     f.sender.ID,
		Type:         models.JobTypeSendEmail,
		Status:       models.JobStatusPending,
		TemplateType: string(access.TypeExamReminder),
		Recipient:    "jane@example.edu",
		Variables: render.Variables{
			FirstName: "jane",
			LastName:  "doe",
			ExamTitle: "final exam",
			InviteURL: "https://exams.example.edu/invite/abc",
		},
	}
	require.NoError(t, f.db.Create(job).Error)
	return job
}

func (f *fixture) load(t *testing.T, id uuid.UUID) models.Job {
	t.Helper()
	var job models.Job
	require.NoError(t, f.db.Where("id = ?", id).First(&job).Error)
	return job
}

func TestProcessJob_SendsWithDefaultTemplate(t *testing.T) {
	f := setup(t)
	job := f.pendingJob(t)

	f.worker.ProcessJob(context.Background(), job.ID)

	got := f.load(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status, got.Error)
	require.NotNil(t, got.TemplateID)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Contains(t, got.Logs, "sent via fake")

	var tpl models.EmailTemplate
	require.NoError(t, f.db.Where("id = ?", *got.TemplateID).First(&tpl).Error)
	assert.True(t, tpl.IsDefault)
	assert.Equal(t, "teacher", tpl.Role)

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.edu", sent[0].To)
	assert.Equal(t, "Jane Doe", sent[0].ToName)
	assert.Equal(t, got.Subject, sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Test Portal")
	assert.Contains(t, sent[0].HTML, "https://exams.example.edu/invite/abc")
}

func TestProcessJob_UsesActiveTemplate(t *testing.T) {
	f := setup(t)
	svc := service.NewTemplateService(f.db)
	res, err := svc.Create(context.Background(), f.sender.Caller(), service.CreateRequest{
		Payload: access.Payload{
			Name:        "My Reminder",
			Type:        string(access.TypeExamReminder),
			Subject:     "Reminder for {firstName}: {examTitle}",
			MainMessage: "<p>Good luck, {firstName}!</p>",
			Visibility:  string(access.VisibilityPrivate),
		},
		SetActive: true,
	})
	require.NoError(t, err)
	require.True(t, res.Activated)

	job := f.pendingJob(t)
	f.worker.ProcessJob(context.Background(), job.ID)

	got := f.load(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, got.Status, got.Error)
	assert.Equal(t, res.Template.ID, *got.TemplateID)
	assert.Equal(t, "Reminder for Jane: Final Exam", got.Subject)
}

func TestProcessJob_MailerFailure(t *testing.T) {
	f := setup(t)
	f.mailer.err = errors.New("connection refused")
	job := f.pendingJob(t)

	f.worker.ProcessJob(context.Background(), job.ID)

	got := f.load(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "connection refused")
	assert.NotNil(t, got.TemplateID)
}

func TestProcessJob_SkipsFinishedJob(t *testing.T) {
	f := setup(t)
	job := f.pendingJob(t)

	f.worker.ProcessJob(context.Background(), job.ID)
	f.worker.ProcessJob(context.Background(), job.ID)

	assert.Len(t, f.mailer.messages(), 1)
}

func TestStart_DrainsQueueUntilClosed(t *testing.T) {
	f := setup(t)
	jobs := []*models.Job{f.pendingJob(t), f.pendingJob(t), f.pendingJob(t)}
	for _, job := range jobs {
		require.NoError(t, f.queue.Enqueue(context.Background(), job.ID))
	}
	require.NoError(t, f.queue.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.worker.Start(ctx))

	for _, job := range jobs {
		assert.Equal(t, models.JobStatusCompleted, f.load(t, job.ID).Status)
	}
	assert.Len(t, f.mailer.messages(), 3)
}

func TestRequeuePending(t *testing.T) {
	f := setup(t)
	pending := f.pendingJob(t)
	done := f.pendingJob(t)
	require.NoError(t, f.db.Model(done).Update("status", models.JobStatusCompleted).Error)

	n, err := f.worker.RequeuePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pending.ID, id)
}
