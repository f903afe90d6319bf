package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService reads the user directory.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// List returns users holding any of roles, ordered by first name. An empty
// roles list returns every user.
func (s *UserService) List(ctx context.Context, roles []access.Role) ([]models.User, error) {
	query := s.db.WithContext(ctx).Order("first_name ASC").Order("last_name ASC")
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = r.String()
		}
		query = query.Where("role IN ?", names)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// ParseRoles turns a comma separated role filter into roles. Unknown roles
// are rejected.
func ParseRoles(csv []string) ([]access.Role, error) {
	var roles []access.Role
	for _, raw := range csv {
		r := access.ParseRole(raw)
		switch r {
		case "":
			continue
		case access.RoleAdmin, access.RoleTeacher, access.RoleStudent:
			roles = append(roles, r)
		default:
			return nil, &ValidationError{Message: fmt.Sprintf("unknown role: %s", raw)}
		}
	}
	return roles, nil
}
