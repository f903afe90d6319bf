package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// UserContextKey is the key used to store user in Gin context
	UserContextKey = "user"
	// DefaultTokenDuration is used when no TTL is configured
	DefaultTokenDuration = 24 * time.Hour

	issuer = "mailroom"
)

// BasicAuthenticator implements username/password authentication with
// HS256 bearer tokens.
type BasicAuthenticator struct {
	db        *gorm.DB
	jwtSecret []byte
	ttl       time.Duration
}

// NewBasicAuthenticator creates a new basic authenticator
func NewBasicAuthenticator(db *gorm.DB, jwtSecret string, ttl time.Duration) *BasicAuthenticator {
	if ttl <= 0 {
		ttl = DefaultTokenDuration
	}
	return &BasicAuthenticator{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches the hash
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns a JWT token
func (a *BasicAuthenticator) Login(username, password string) (*LoginResponse, error) {
	var user models.User
	result := a.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with non-existent username", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Login attempt with incorrect password", "username", username)
		return nil, ErrInvalidCredentials
	}
	if user.Deleted {
		slog.Warn("Login attempt for deleted account", "user_id", user.ID)
		return nil, ErrAccountDisabled
	}

	now := time.Now()
	token, err := a.signToken(&user, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username)
	return &LoginResponse{
		Token:     token,
		ExpiresAt: now.Add(a.ttl).UTC(),
		User:      &user,
	}, nil
}

// GenerateToken creates a signed JWT for user
func (a *BasicAuthenticator) GenerateToken(user *models.User) (string, error) {
	return a.signToken(user, time.Now())
}

func (a *BasicAuthenticator) signToken(user *models.User, now time.Time) (string, error) {
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// validateToken validates a JWT token and returns claims
func (a *BasicAuthenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrUnauthorized
}

// Middleware returns a Gin middleware that requires a valid bearer token.
// The user is reloaded on every request so role changes and account removal
// take effect immediately.
func (a *BasicAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" || strings.Contains(token, " ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		user, err := a.validateAndLoadUser(token)
		if err != nil {
			slog.Warn("Invalid token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}
		if user.Deleted {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account disabled"})
			c.Abort()
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// validateAndLoadUser validates a JWT and loads the user from the database.
func (a *BasicAuthenticator) validateAndLoadUser(tokenString string) (*models.User, error) {
	claims, err := a.validateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	var user models.User
	if err := a.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &user, nil
}

// GetUserFromContext extracts the authenticated user from the Gin context
func (a *BasicAuthenticator) GetUserFromContext(c *gin.Context) (*models.User, error) {
	return UserFromContext(c)
}

// UserFromContext extracts the authenticated user set by Middleware.
func UserFromContext(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, ErrUnauthorized
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil, errors.New("invalid user in context")
	}

	return user, nil
}
