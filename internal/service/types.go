package service

import (
	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/render"
)

// ListRequest narrows a template listing.
type ListRequest struct {
	TemplateType    string
	IncludeDefaults bool
}

// CreateRequest holds parameters for creating a template.
type CreateRequest struct {
	Payload   access.Payload
	SetActive bool
}

// CreateResult is returned after a successful create. Activated is false
// when activation was not requested or failed; a failed activation does not
// undo the create.
type CreateResult struct {
	Template  *models.EmailTemplate
	Activated bool
}

// SendRequest asks for a templated email to be delivered on behalf of the
// caller.
type SendRequest struct {
	TemplateType string
	Recipient    string
	Variables    render.Variables
}
