package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	entry := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&entry).Error
}

// Record writes an audit entry and logs, rather than returns, a failure.
// Audit writes never fail the operation they describe.
func Record(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) {
	if err := LogAction(db, userID, action, resource, details); err != nil {
		slog.Error("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// TemplateResource names a template in audit entries.
func TemplateResource(id uuid.UUID) string {
	return fmt.Sprintf("template:%s", id)
}

// Audit actions constants
const (
	ActionCreateTemplate    = "create_template"
	ActionUpdateTemplate    = "update_template"
	ActionDeleteTemplate    = "delete_template"
	ActionSetActiveTemplate = "set_active_template"
	ActionSendMail          = "send_mail"
	ActionCreateUser        = "create_user"
	ActionDisableUser       = "disable_user"
	ActionLogin             = "login"
	ActionLoginFailed       = "login_failed"
)
