package service

import (
	"errors"
	"strings"

	"github.com/eduexamportal/mailroom/internal/access"
	"gorm.io/gorm"
)

// ErrNotFound indicates a non-template resource (user, job) was not found.
// Missing templates are reported as access.ErrNotFound.
var ErrNotFound = errors.New("not found")

// ValidationError represents a bad-request condition (HTTP 400) outside the
// template payload rules.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var errDuplicatePublicName = &access.ConflictError{
	Reason:  access.DuplicatePublicName,
	Message: "A public template with this name already exists. Please choose a different name.",
}

// isUniqueViolation reports whether err came from a unique index. SQLite and
// PostgreSQL drivers do not share an error type, so the message is checked too.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
