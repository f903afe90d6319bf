package models

import (
	"time"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a portal account. Role is stored lower-case. Deleted marks an
// account that was removed from the portal; the row is kept so templates can
// still name their creator.
type User struct {
	ID            uuid.UUID  `gorm:"type:text;primary_key" json:"id"`
	Username      string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	FirstName     string     `gorm:"index" json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          string     `gorm:"not null;default:'student';index" json:"role"`
	Deleted       bool       `gorm:"not null;default:false" json:"deleted"`
	InstitutionID *uuid.UUID `gorm:"type:text" json:"institution_id,omitempty"`
	DepartmentID  *uuid.UUID `gorm:"type:text" json:"department_id,omitempty"`

	ActiveStudentInvitationWithExamTemplateID *uuid.UUID `gorm:"type:text;index" json:"active_student_invitation_with_exam_template_id"`
	ActiveStudentInvitationGeneralTemplateID  *uuid.UUID `gorm:"type:text;index" json:"active_student_invitation_general_template_id"`
	ActiveTeacherInvitationTemplateID         *uuid.UUID `gorm:"type:text;index" json:"active_teacher_invitation_template_id"`
	ActiveExamReminderTemplateID              *uuid.UUID `gorm:"type:text;index" json:"active_exam_reminder_template_id"`
	ActiveResultsNotificationTemplateID       *uuid.UUID `gorm:"type:text;index" json:"active_results_notification_template_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID and normalize the role
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Role = access.ParseRole(u.Role).String()
	if u.Role == "" {
		u.Role = access.RoleStudent.String()
	}
	return nil
}

// Caller returns the identity the access rules evaluate for u.
func (u *User) Caller() access.Caller {
	return access.Caller{ID: u.ID, Role: access.ParseRole(u.Role)}
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

var slotColumns = map[access.Slot]string{
	access.SlotStudentInvitationWithExam: "active_student_invitation_with_exam_template_id",
	access.SlotStudentInvitationGeneral:  "active_student_invitation_general_template_id",
	access.SlotTeacherInvitation:         "active_teacher_invitation_template_id",
	access.SlotExamReminder:              "active_exam_reminder_template_id",
	access.SlotResultsNotification:       "active_results_notification_template_id",
}

// SlotColumn returns the users column backing slot.
func SlotColumn(slot access.Slot) (string, bool) {
	col, ok := slotColumns[slot]
	return col, ok
}

// ActiveTemplate returns the template id u has active in slot, if any.
func (u *User) ActiveTemplate(slot access.Slot) *uuid.UUID {
	switch slot {
	case access.SlotStudentInvitationWithExam:
		return u.ActiveStudentInvitationWithExamTemplateID
	case access.SlotStudentInvitationGeneral:
		return u.ActiveStudentInvitationGeneralTemplateID
	case access.SlotTeacherInvitation:
		return u.ActiveTeacherInvitationTemplateID
	case access.SlotExamReminder:
		return u.ActiveExamReminderTemplateID
	case access.SlotResultsNotification:
		return u.ActiveResultsNotificationTemplateID
	}
	return nil
}

// ActiveTemplates returns every slot with its current template id. Unset
// slots map to nil.
func (u *User) ActiveTemplates() map[access.Slot]*uuid.UUID {
	out := make(map[access.Slot]*uuid.UUID, len(access.Slots))
	for _, slot := range access.Slots {
		out[slot] = u.ActiveTemplate(slot)
	}
	return out
}
