package access

import (
	"strings"

	"github.com/google/uuid"
)

// Payload is the caller-supplied content of a create or update request.
type Payload struct {
	Name           string
	Type           string
	Description    string
	Subject        string
	MainMessage    string
	Visibility     string
	AllowedUserIDs []uuid.UUID
}

// Normalized is a payload that passed validation. AllowedUserIDs is empty
// unless Visibility is custom, and never contains duplicates.
type Normalized struct {
	Name           string
	Type           TemplateType
	Description    string
	Subject        string
	MainMessage    string
	Visibility     Visibility
	AllowedUserIDs []uuid.UUID
}

// ValidateTemplatePayload checks p against the template rules. existing holds
// the templates to check for a public name clash; self is the id of the
// template being updated, or uuid.Nil on create.
//
// The name check only sees the records passed in. Two writers validating
// concurrently can both pass, so storage must enforce public-name uniqueness
// as well.
func ValidateTemplatePayload(p Payload, existing []Template, self uuid.UUID) (Normalized, error) {
	for _, field := range []string{p.Name, p.Type, p.Subject, p.MainMessage} {
		if strings.TrimSpace(field) == "" {
			return Normalized{}, &ValidationError{
				Reason:  MissingField,
				Message: "Missing required fields: template_name, template_type, subject, main_message",
			}
		}
	}

	vis, ok := ParseVisibility(p.Visibility)
	if !ok {
		return Normalized{}, &ValidationError{
			Reason:  InvalidVisibility,
			Message: "Invalid visibility. Must be: public, private, or custom",
		}
	}

	tt := TemplateType(p.Type)
	if !tt.Valid() {
		return Normalized{}, &ValidationError{
			Reason:  InvalidTemplateType,
			Message: "Invalid template_type: " + p.Type,
		}
	}

	var allowed []uuid.UUID
	if vis == VisibilityCustom {
		allowed = dedupe(p.AllowedUserIDs)
		if len(allowed) == 0 {
			return Normalized{}, &ValidationError{
				Reason:  CustomRequiresUsers,
				Message: "For custom visibility, at least one user must be selected",
			}
		}
	}

	if vis == VisibilityPublic && PublicNameTaken(p.Name, existing, self) {
		return Normalized{}, &ConflictError{
			Reason:  DuplicatePublicName,
			Message: "A public template with this name already exists. Please choose a different name.",
		}
	}

	return Normalized{
		Name:           p.Name,
		Type:           tt,
		Description:    p.Description,
		Subject:        p.Subject,
		MainMessage:    p.MainMessage,
		Visibility:     vis,
		AllowedUserIDs: allowed,
	}, nil
}

// PublicNameTaken reports whether another public template already uses name.
// The comparison is exact and case-sensitive.
func PublicNameTaken(name string, existing []Template, self uuid.UUID) bool {
	for _, t := range existing {
		if t.ID == self && self != uuid.Nil {
			continue
		}
		if t.Visibility == VisibilityPublic && t.Name == name {
			return true
		}
	}
	return false
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NewTemplate builds the access view of a template c is creating from n.
// Creation always yields a non-default template owned by c and scoped to c's role.
func NewTemplate(c Caller, n Normalized) Template {
	return Template{
		Name:           n.Name,
		Type:           n.Type,
		Visibility:     n.Visibility,
		AllowedUserIDs: n.AllowedUserIDs,
		IsDefault:      false,
		Role:           c.Role,
		CreatedBy:      c.ID,
	}
}
