// Package rbac gates API routes by role using casbin. Subjects are role
// names, so the rules answer "may a teacher write templates at all"; which
// template a caller may touch is decided by the access package.
package rbac

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/eduexamportal/mailroom/internal/access"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

// Objects guarded by route-level policies.
const (
	ObjTemplates = "templates"
	ObjUsers     = "users"
	ObjMail      = "mail"
	ObjProfile   = "profile"
	ObjAudit     = "audit"
)

// Actions.
const (
	ActRead  = "read"
	ActWrite = "write"
	ActSend  = "send"
)

// Policy is one allow rule.
type Policy struct {
	Role   access.Role
	Object string
	Action string
}

// DefaultPolicies are loaded on first start. Admins inherit teacher rules and
// teachers inherit student rules.
var DefaultPolicies = []Policy{
	{access.RoleStudent, ObjProfile, ActRead},
	{access.RoleStudent, ObjTemplates, ActRead},
	{access.RoleTeacher, ObjTemplates, ActWrite},
	{access.RoleTeacher, ObjUsers, ActRead},
	{access.RoleTeacher, ObjMail, ActSend},
	{access.RoleAdmin, ObjUsers, ActWrite},
	{access.RoleAdmin, ObjAudit, ActRead},
}

var defaultInheritance = [][2]access.Role{
	{access.RoleAdmin, access.RoleTeacher},
	{access.RoleTeacher, access.RoleStudent},
}

var enforcer *casbin.Enforcer

// InitEnforcer initializes the Casbin enforcer and seeds the default policies.
func InitEnforcer(db *gorm.DB, logger *slog.Logger) error {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	if err := seed(e); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}

	enforcer = e
	logger.Info("RBAC enforcer initialized")
	return nil
}

func seed(e *casbin.Enforcer) error {
	changed := false
	for _, p := range DefaultPolicies {
		added, err := e.AddPolicy(p.Role.String(), p.Object, p.Action)
		if err != nil {
			return err
		}
		changed = changed || added
	}
	for _, link := range defaultInheritance {
		added, err := e.AddGroupingPolicy(link[0].String(), link[1].String())
		if err != nil {
			return err
		}
		changed = changed || added
	}
	if !changed {
		return nil
	}
	return e.SavePolicy()
}

// GetEnforcer returns the global enforcer instance
func GetEnforcer() *casbin.Enforcer {
	return enforcer
}

// Can reports whether role may perform act on obj.
func Can(role access.Role, obj, act string) (bool, error) {
	if enforcer == nil {
		return false, errors.New("rbac enforcer not initialized")
	}
	return enforcer.Enforce(role.String(), obj, act)
}

// Grant adds an allow rule and persists it.
func Grant(role access.Role, obj, act string) error {
	if _, err := enforcer.AddPolicy(role.String(), obj, act); err != nil {
		return err
	}
	return enforcer.SavePolicy()
}

// Revoke removes an allow rule and persists the change.
func Revoke(role access.Role, obj, act string) error {
	if _, err := enforcer.RemovePolicy(role.String(), obj, act); err != nil {
		return err
	}
	return enforcer.SavePolicy()
}
