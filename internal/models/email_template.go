package models

import (
	"time"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailTemplate is a stored subject and HTML body with its access metadata.
// Default templates are seeded per role and never change through the API.
type EmailTemplate struct {
	ID             uuid.UUID   `gorm:"type:text;primary_key" json:"id"`
	TemplateName   string      `gorm:"not null;index" json:"template_name"`
	TemplateType   string      `gorm:"not null;index" json:"template_type"`
	Description    string      `gorm:"type:text" json:"description"`
	Subject        string      `gorm:"not null" json:"subject"`
	MainMessage    string      `gorm:"type:text;not null" json:"main_message"`
	Visibility     string      `gorm:"not null;default:'private'" json:"visibility"`
	AllowedUserIDs []uuid.UUID `gorm:"serializer:json" json:"allowed_user_ids"`
	IsDefault      bool        `gorm:"not null;default:false;index" json:"is_default"`
	Role           string      `gorm:"not null;index" json:"role"`
	CreatedBy      *uuid.UUID  `gorm:"type:text;index" json:"created_by"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	Creator *CreatorSummary `gorm:"-" json:"creator"`
}

// CreatorSummary is the slice of a user shown next to a template.
type CreatorSummary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Deleted   bool      `json:"deleted"`
}

// NewCreatorSummary projects u for template listings.
func NewCreatorSummary(u *User) *CreatorSummary {
	return &CreatorSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Deleted:   u.Deleted,
	}
}

// BeforeCreate hook to generate UUID
func (t *EmailTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// AccessTemplate exposes the fields the access rules evaluate.
func (t EmailTemplate) AccessTemplate() access.Template {
	var createdBy uuid.UUID
	if t.CreatedBy != nil {
		createdBy = *t.CreatedBy
	}
	return access.Template{
		ID:             t.ID,
		Name:           t.TemplateName,
		Type:           access.TemplateType(t.TemplateType),
		Visibility:     access.Visibility(t.Visibility),
		AllowedUserIDs: t.AllowedUserIDs,
		IsDefault:      t.IsDefault,
		Role:           access.ParseRole(t.Role),
		CreatedBy:      createdBy,
	}
}
