package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// handleServiceError maps service-layer errors to HTTP status codes.
func handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, access.ErrNotFound) || errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	var accessValidation *access.ValidationError
	if errors.As(err, &accessValidation) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: accessValidation.Message, Reason: string(accessValidation.Reason)})
		return
	}
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validationErr.Message})
		return
	}
	var unknownType *access.UnknownTemplateTypeError
	if errors.As(err, &unknownType) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: unknownType.Error(), Reason: "unknown_template_type"})
		return
	}
	var conflictErr *access.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: conflictErr.Message, Reason: string(conflictErr.Reason)})
		return
	}
	var forbiddenErr *access.ForbiddenError
	if errors.As(err, &forbiddenErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: forbiddenErr.Message, Reason: string(forbiddenErr.Reason)})
		return
	}
	slog.Error("unhandled service error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

func currentUser(c *gin.Context) *models.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	return user.(*models.User)
}

func getCaller(c *gin.Context) access.Caller {
	if u := currentUser(c); u != nil {
		return u.Caller()
	}
	return access.Caller{}
}

// parseID reads the :id path parameter. It writes a 400 and returns false
// when the value is not a UUID.
func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}
