package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUserExists is returned when creating a user whose username or email is taken.
var ErrUserExists = errors.New("user already exists")

// NewUser describes an account to create.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      access.Role
}

// CreateUser hashes the password and stores the account.
func CreateUser(db *gorm.DB, nu NewUser) (*models.User, error) {
	var count int64
	err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", nu.Username, nu.Email).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: string(hashed),
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Role:         nu.Role.String(),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// CreateDefaultAdmin creates an admin from ADMIN_USERNAME and ADMIN_PASSWORD
// when both are set and the users table is empty.
func CreateDefaultAdmin(db *gorm.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	email := os.Getenv("ADMIN_EMAIL")

	if username == "" || password == "" {
		slog.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}
	if email == "" {
		email = fmt.Sprintf("%s@mailroom.local", username)
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	if _, err := CreateUser(db, NewUser{
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		Role:      access.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "username", username, "email", email)
	return nil
}
