package access

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested template does not exist.
var ErrNotFound = errors.New("template not found")

// ValidationReason identifies why a payload was rejected.
type ValidationReason string

const (
	MissingField        ValidationReason = "missing_field"
	InvalidVisibility   ValidationReason = "invalid_visibility"
	InvalidTemplateType ValidationReason = "invalid_template_type"
	CustomRequiresUsers ValidationReason = "custom_requires_users"
)

// ValidationError represents a caller-correctable payload problem (HTTP 400).
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictReason identifies the kind of conflict.
type ConflictReason string

const DuplicatePublicName ConflictReason = "duplicate_public_name"

// ConflictError represents a conflict with an existing record (HTTP 409).
type ConflictError struct {
	Reason  ConflictReason
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForbiddenReason identifies which rule denied an action.
type ForbiddenReason string

const (
	EditDefaultTemplate   ForbiddenReason = "edit_default_template"
	DeleteDefaultTemplate ForbiddenReason = "delete_default_template"
	NotOwner              ForbiddenReason = "not_owner"
	RoleMismatch          ForbiddenReason = "role_mismatch"
	NotReachable          ForbiddenReason = "not_reachable"
	InsufficientRole      ForbiddenReason = "insufficient_role"
)

// ForbiddenError represents a permission denial (HTTP 403). It is never retried.
type ForbiddenError struct {
	Reason  ForbiddenReason
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// UnknownTemplateTypeError reports a template whose type has no active slot.
// This is a data or configuration fault, not a user error.
type UnknownTemplateTypeError struct {
	Type string
}

func (e *UnknownTemplateTypeError) Error() string {
	return fmt.Sprintf("unknown template type: %s", e.Type)
}

func forbidden(reason ForbiddenReason, msg string) error {
	return &ForbiddenError{Reason: reason, Message: msg}
}
