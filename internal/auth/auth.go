// Package auth is mailroom's session provider: it turns a username and
// password into a bearer token and a token back into the portal account the
// access rules evaluate.
package auth

import (
	"errors"
	"time"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/gin-gonic/gin"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password, so callers cannot probe for accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized means the request carries no usable session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountDisabled is returned for accounts an admin has removed from
	// the portal. Their templates stay, their sessions do not.
	ErrAccountDisabled = errors.New("account disabled")
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token, when it stops working, and the
// account it belongs to.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Authenticator issues and checks sessions for portal accounts.
type Authenticator interface {
	Login(username, password string) (*LoginResponse, error)

	// Middleware rejects requests without a valid session and stores the
	// account under UserContextKey for the handlers.
	Middleware() gin.HandlerFunc

	GetUserFromContext(c *gin.Context) (*models.User, error)
}
