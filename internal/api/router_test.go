package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/auth"
	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/queue"
	"github.com/eduexamportal/mailroom/internal/rbac"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	queue  *queue.MemoryQueue
	auth   *auth.BasicAuthenticator
	users  map[string]*models.User
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "development"},
		Auth:      config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
		Mail:      config.MailConfig{Driver: "log", BrandName: "Test Portal"},
		RateLimit: config.RateLimitConfig{LoginRPS: 0.01, LoginBurst: 3},
	}
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, rbac.InitEnforcer(gdb, slog.Default()))

	env := &testEnv{
		db:    gdb,
		queue: queue.NewMemoryQueue(16),
		auth:  auth.NewBasicAuthenticator(gdb, testSecret, time.Hour),
		users: make(map[string]*models.User),
	}
	t.Cleanup(func() { env.queue.Close() })

	for _, u := range []struct {
		name string
		role access.Role
	}{
		{"admin", access.RoleAdmin},
		{"alice", access.RoleTeacher},
		{"bob", access.RoleTeacher},
		{"sam", access.RoleStudent},
	} {
		user, err := db.CreateUser(gdb, db.NewUser{
			Username:  u.name,
			Email:     u.name + "@example.edu",
			Password:  "password-" + u.name,
			FirstName: strings.ToUpper(u.name[:1]) + u.name[1:],
			Role:      u.role,
		})
		require.NoError(t, err)
		env.users[u.name] = user
	}

	env.router = NewRouter(testConfig(), gdb, env.queue)
	return env
}

func (e *testEnv) do(t *testing.T, as, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		token, err := e.auth.GenerateToken(e.users[as])
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func templateBody(name, vis string, allowed ...uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"template_name":    name,
		"template_type":    "exam_reminder",
		"subject":          "Reminder: {examTitle}",
		"main_message":     "<p>Hi {firstName}</p>",
		"visibility":       vis,
		"allowed_user_ids": allowed,
	}
}

func (e *testEnv) createTemplate(t *testing.T, as string, body map[string]interface{}) models.EmailTemplate {
	t.Helper()
	w := e.do(t, as, http.MethodPost, "/api/v1/email-templates", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Template models.EmailTemplate `json:"template"`
	}
	decode(t, w, &resp)
	return resp.Template
}

func TestHealth(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "", http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["instance_id"])
}

func TestLogin(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice", "password": "password-alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp auth.LoginResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)

	w = env.do(t, "", http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	env := setupRouter(t)
	creds := map[string]string{"username": "alice", "password": "wrong"}

	for i := 0; i < 3; i++ {
		w := env.do(t, "", http.MethodPost, "/api/v1/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.do(t, "", http.MethodPost, "/api/v1/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRequiresAuthentication(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "", http.MethodGet, "/api/v1/email-templates", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentCannotWriteTemplates(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "sam", http.MethodPost, "/api/v1/email-templates", templateBody("Nope", "private"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "sam", http.MethodGet, "/api/v1/email-templates", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	env := setupRouter(t)
	tpl := env.createTemplate(t, "alice", templateBody("Alice Reminder", "public"))

	// Bob sees it but cannot change it.
	w := env.do(t, "bob", http.MethodGet, "/api/v1/email-templates/"+tpl.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "bob", http.MethodPut, "/api/v1/email-templates/"+tpl.ID.String(), templateBody("Hijacked", "public"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	var errResp map[string]string
	decode(t, w, &errResp)
	assert.Equal(t, string(access.NotOwner), errResp["reason"])

	// Bob activates it, then Alice deletes it.
	w = env.do(t, "bob", http.MethodPost, "/api/v1/email-templates/"+tpl.ID.String()+"/set-active", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, "bob", http.MethodGet, "/api/v1/me/active-templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active map[string]*string
	decode(t, w, &active)
	require.NotNil(t, active["exam_reminder"])
	assert.Equal(t, tpl.ID.String(), *active["exam_reminder"])

	w = env.do(t, "alice", http.MethodDelete, "/api/v1/email-templates/"+tpl.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "bob", http.MethodGet, "/api/v1/me/active-templates", nil)
	decode(t, w, &active)
	assert.Nil(t, active["exam_reminder"])

	w = env.do(t, "alice", http.MethodGet, "/api/v1/email-templates/"+tpl.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTemplate_Errors(t *testing.T) {
	env := setupRouter(t)
	env.createTemplate(t, "alice", templateBody("Taken", "public"))

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		reason string
	}{
		{"duplicate public name", templateBody("Taken", "public"), http.StatusConflict, string(access.DuplicatePublicName)},
		{"bad visibility", templateBody("X", "secret"), http.StatusBadRequest, string(access.InvalidVisibility)},
		{"custom without users", templateBody("Y", "custom"), http.StatusBadRequest, string(access.CustomRequiresUsers)},
		{"missing fields", map[string]interface{}{"template_name": "Z"}, http.StatusBadRequest, string(access.MissingField)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "bob", http.MethodPost, "/api/v1/email-templates", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			var resp map[string]string
			decode(t, w, &resp)
			assert.Equal(t, tt.reason, resp["reason"])
		})
	}
}

func TestSetActive_UnknownTemplateType(t *testing.T) {
	env := setupRouter(t)
	body := templateBody("Legacy", "private")
	body["template_type"] = "student_invitation"
	tpl := env.createTemplate(t, "alice", body)

	w := env.do(t, "alice", http.MethodPost, "/api/v1/email-templates/"+tpl.ID.String()+"/set-active", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTemplates_CustomVisibility(t *testing.T) {
	env := setupRouter(t)
	tpl := env.createTemplate(t, "alice", templateBody("For Bob", "custom", env.users["bob"].ID))

	ids := func(as string) []uuid.UUID {
		w := env.do(t, as, http.MethodGet, "/api/v1/email-templates?include_defaults=false", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var list []models.EmailTemplate
		decode(t, w, &list)
		out := make([]uuid.UUID, len(list))
		for i, item := range list {
			out[i] = item.ID
		}
		return out
	}

	assert.Contains(t, ids("bob"), tpl.ID)
	assert.NotContains(t, ids("admin"), tpl.ID)
	assert.NotContains(t, ids("sam"), tpl.ID)

	w := env.do(t, "alice", http.MethodGet, "/api/v1/email-templates?include_defaults=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewTemplate(t *testing.T) {
	env := setupRouter(t)
	tpl := env.createTemplate(t, "alice", templateBody("Preview Me", "private"))

	w := env.do(t, "alice", http.MethodPost, "/api/v1/email-templates/"+tpl.ID.String()+"/preview", map[string]string{
		"firstName": "jane",
		"examTitle": "final exam",
		"inviteUrl": "https://exams.example.edu/i/1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var email map[string]string
	decode(t, w, &email)
	assert.Equal(t, "Reminder: Final Exam", email["subject"])
	assert.Contains(t, email["html"], "Hi Jane")
	assert.Contains(t, email["html"], "Test Portal")

	w = env.do(t, "bob", http.MethodPost, "/api/v1/email-templates/"+tpl.ID.String()+"/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUsers(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "alice", http.MethodGet, "/api/v1/users?roles=teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]interface{}
	decode(t, w, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0]["first_name"])
	assert.NotContains(t, users[0], "password_hash")

	w = env.do(t, "alice", http.MethodGet, "/api/v1/users?roles=janitor", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "sam", http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMail(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "alice", http.MethodPost, "/api/v1/mail/send", map[string]interface{}{
		"template_type":   "exam_reminder",
		"recipient_email": "jane@example.edu",
		"variables":       map[string]string{"firstName": "jane", "inviteUrl": "https://exams.example.edu/i/1"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job models.Job
	decode(t, w, &job)
	assert.Equal(t, models.JobStatusPending, job.Status)

	w = env.do(t, "alice", http.MethodGet, "/api/v1/mail/jobs/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, "bob", http.MethodGet, "/api/v1/mail/jobs/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "sam", http.MethodPost, "/api/v1/mail/send", map[string]interface{}{
		"template_type": "exam_reminder", "recipient_email": "jane@example.edu",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, "admin", http.MethodPost, "/api/v1/admin/users", map[string]string{
		"username": "newbie", "email": "newbie@example.edu", "password": "long-enough", "role": "Teacher",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]interface{}
	decode(t, w, &created)
	assert.Equal(t, "teacher", created["role"])

	w = env.do(t, "alice", http.MethodPost, "/api/v1/admin/users", map[string]string{
		"username": "sneaky", "email": "sneaky@example.edu", "password": "long-enough", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "admin", http.MethodDelete, "/api/v1/admin/users/"+env.users["bob"].ID.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// Disabled accounts lose access immediately.
	w = env.do(t, "bob", http.MethodGet, "/api/v1/email-templates", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, "admin", http.MethodGet, "/api/v1/admin/audit-logs?action=create_user", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.AuditLog
	decode(t, w, &logs)
	assert.Len(t, logs, 1)
}
