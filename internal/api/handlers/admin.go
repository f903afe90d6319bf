package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/audit"
	"github.com/eduexamportal/mailroom/internal/db"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// CreateUserRequest is the body of an account creation request.
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role" binding:"required"`
}

// CreateUser godoc
// @Summary Create a new user (admin only)
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User details"
// @Success 201 {object} UserSummary
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	adminUser := currentUser(c)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	role := access.ParseRole(req.Role)
	switch role {
	case access.RoleAdmin, access.RoleTeacher, access.RoleStudent:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role must be admin, teacher or student"})
		return
	}

	user, err := db.CreateUser(h.db, db.NewUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		if errors.Is(err, db.ErrUserExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Username or email already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create user"})
		return
	}

	audit.Record(h.db, adminUser.ID, audit.ActionCreateUser, "user:"+user.ID.String(), map[string]interface{}{
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})

	c.JSON(http.StatusCreated, summarize(*user))
}

// DisableUser godoc
// @Summary Disable a user (admin only)
// @Description Marks the account deleted. The row is kept so templates still name their creator.
// @Tags admin
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DisableUser(c *gin.Context) {
	adminUser := currentUser(c)
	userID, ok := parseID(c, "user")
	if !ok {
		return
	}

	// Can't disable yourself
	if userID == adminUser.ID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Cannot disable yourself"})
		return
	}

	res := h.db.Model(&models.User{}).Where("id = ?", userID).Update("deleted", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to disable user"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found"})
		return
	}

	audit.Record(h.db, adminUser.ID, audit.ActionDisableUser, "user:"+userID.String(), nil)
	c.Status(http.StatusNoContent)
}

// ListAuditLogs godoc
// @Summary List audit logs
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param user_id query string false "Filter by user ID"
// @Param action query string false "Filter by action"
// @Param limit query int false "Maximum entries (default 100)"
// @Success 200 {array} models.AuditLog
// @Router /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	query := h.db.Order("timestamp DESC").Limit(limit)

	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch audit logs"})
		return
	}

	c.JSON(http.StatusOK, logs)
}
