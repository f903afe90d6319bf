package handlers

import (
	"errors"
	"net/http"

	"github.com/eduexamportal/mailroom/internal/audit"
	"github.com/eduexamportal/mailroom/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.LoginRequest true "Login credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func Login(authenticator auth.Authenticator, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		resp, err := authenticator.Login(req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				audit.Record(db, uuid.Nil, audit.ActionLoginFailed, "user:"+req.Username, map[string]interface{}{
					"ip": c.ClientIP(),
				})
				c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			case errors.Is(err, auth.ErrAccountDisabled):
				c.JSON(http.StatusForbidden, ErrorResponse{Error: "account disabled"})
			default:
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			}
			return
		}

		audit.Record(db, resp.User.ID, audit.ActionLogin, "user:"+resp.User.ID.String(), map[string]interface{}{
			"ip": c.ClientIP(),
		})
		c.JSON(http.StatusOK, resp)
	}
}

// GetCurrentUser godoc
// @Summary Get current user
// @Description Get the currently authenticated user's information
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func GetCurrentUser(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticator.GetUserFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		c.JSON(http.StatusOK, user)
	}
}
