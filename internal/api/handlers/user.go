package handlers

import (
	"net/http"
	"strings"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler serves the user directory.
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// UserSummary is the directory entry used by the allow-list picker.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Deleted   bool      `json:"deleted"`
}

func summarize(u models.User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		Deleted:   u.Deleted,
	}
}

// ListUsers godoc
// @Summary List users
// @Description Lists users ordered by first name, optionally filtered by role
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param roles query string false "Comma separated roles, e.g. teacher,admin"
// @Success 200 {array} UserSummary
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	roles, err := service.ParseRoles(strings.Split(c.Query("roles"), ","))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	users, err := h.svc.List(c.Request.Context(), roles)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = summarize(u)
	}
	c.JSON(http.StatusOK, out)
}
