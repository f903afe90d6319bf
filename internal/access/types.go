// Package access decides which callers may list, edit, delete and activate
// email templates, and validates template payloads before they are stored.
//
// Every function in this package is pure: callers pass in the identity and
// the candidate records, nothing is read from ambient state.
package access

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the normalized role of a user. Values are always lower case.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole normalizes a stored or transported role string. Unknown roles are
// kept (lower-cased) so they compare consistently but grant nothing.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

func (r Role) String() string { return string(r) }

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// CanAuthor reports whether the role may create templates at all.
func (r Role) CanAuthor() bool { return r == RoleAdmin || r == RoleTeacher }

// Visibility is the access scope of a template.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityCustom  Visibility = "custom"
)

// ParseVisibility returns the visibility named by s and whether it is valid.
// Matching is exact.
func ParseVisibility(s string) (Visibility, bool) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPrivate, VisibilityCustom:
		return v, true
	}
	return "", false
}

// TemplateType is the closed category of a template.
type TemplateType string

const (
	TypeStudentInvitation         TemplateType = "student_invitation"
	TypeStudentInvitationWithExam TemplateType = "student_invitation_with_exam"
	TypeStudentInvitationGeneral  TemplateType = "student_invitation_general"
	TypeTeacherInvitation         TemplateType = "teacher_invitation"
	TypeExamReminder              TemplateType = "exam_reminder"
	TypeResultsNotification       TemplateType = "results_notification"
)

// TemplateTypes lists every accepted template type.
var TemplateTypes = []TemplateType{
	TypeStudentInvitation,
	TypeStudentInvitationWithExam,
	TypeStudentInvitationGeneral,
	TypeTeacherInvitation,
	TypeExamReminder,
	TypeResultsNotification,
}

// Valid reports whether t is one of the known template types.
func (t TemplateType) Valid() bool {
	for _, known := range TemplateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Slot names a per-user active template pointer.
type Slot string

const (
	SlotStudentInvitationWithExam Slot = "student_invitation_with_exam"
	SlotStudentInvitationGeneral  Slot = "student_invitation_general"
	SlotTeacherInvitation         Slot = "teacher_invitation"
	SlotExamReminder              Slot = "exam_reminder"
	SlotResultsNotification       Slot = "results_notification"
)

// Slots lists every active template slot in a stable order.
var Slots = []Slot{
	SlotStudentInvitationWithExam,
	SlotStudentInvitationGeneral,
	SlotTeacherInvitation,
	SlotExamReminder,
	SlotResultsNotification,
}

// The legacy student_invitation type has no slot.
var slotByType = map[TemplateType]Slot{
	TypeStudentInvitationWithExam: SlotStudentInvitationWithExam,
	TypeStudentInvitationGeneral:  SlotStudentInvitationGeneral,
	TypeTeacherInvitation:         SlotTeacherInvitation,
	TypeExamReminder:              SlotExamReminder,
	TypeResultsNotification:       SlotResultsNotification,
}

// SlotFor resolves the active template slot a template type occupies.
func SlotFor(t TemplateType) (Slot, error) {
	slot, ok := slotByType[t]
	if !ok {
		return "", &UnknownTemplateTypeError{Type: string(t)}
	}
	return slot, nil
}

// Caller is the identity an operation is performed on behalf of.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// Template is the metadata the access rules look at. CreatedBy is uuid.Nil
// when the template has no recorded creator (seeded defaults).
type Template struct {
	ID             uuid.UUID
	Name           string
	Type           TemplateType
	Visibility     Visibility
	AllowedUserIDs []uuid.UUID
	IsDefault      bool
	Role           Role
	CreatedBy      uuid.UUID
}

// Guarded is implemented by records that can present their access metadata.
type Guarded interface {
	AccessTemplate() Template
}

// AccessTemplate lets a bare Template be used wherever a Guarded is expected.
func (t Template) AccessTemplate() Template { return t }

func (t Template) ownedBy(id uuid.UUID) bool {
	return t.CreatedBy != uuid.Nil && t.CreatedBy == id
}

func (t Template) allows(id uuid.UUID) bool {
	for _, allowed := range t.AllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

// Assignment points a user's slot at a template.
type Assignment struct {
	UserID     uuid.UUID
	Slot       Slot
	TemplateID uuid.UUID
}
