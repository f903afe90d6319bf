package rbac

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func initTestEnforcer(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "rbac.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, InitEnforcer(db, slog.Default()))
	return db
}

func TestDefaultPolicies(t *testing.T) {
	initTestEnforcer(t)

	tests := []struct {
		role access.Role
		obj  string
		act  string
		want bool
	}{
		{access.RoleStudent, ObjTemplates, ActRead, true},
		{access.RoleStudent, ObjTemplates, ActWrite, false},
		{access.RoleStudent, ObjUsers, ActRead, false},
		{access.RoleStudent, ObjMail, ActSend, false},
		{access.RoleTeacher, ObjTemplates, ActWrite, true},
		{access.RoleTeacher, ObjProfile, ActRead, true},
		{access.RoleTeacher, ObjMail, ActSend, true},
		{access.RoleAdmin, ObjTemplates, ActWrite, true},
		{access.RoleAdmin, ObjUsers, ActRead, true},
		{access.RoleAdmin, ObjUsers, ActWrite, true},
		{access.RoleTeacher, ObjUsers, ActWrite, false},
		{access.RoleTeacher, ObjAudit, ActRead, false},
		{access.RoleAdmin, ObjAudit, ActRead, true},
		{access.Role("proctor"), ObjTemplates, ActRead, false},
	}
	for _, tt := range tests {
		got, err := Can(tt.role, tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.role, tt.obj, tt.act)
	}
}

func TestInitEnforcer_IsIdempotent(t *testing.T) {
	db := initTestEnforcer(t)
	require.NoError(t, InitEnforcer(db, slog.Default()))

	policies, err := GetEnforcer().GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, len(DefaultPolicies))
}

func TestGrantRevoke(t *testing.T) {
	initTestEnforcer(t)

	ok, err := Can(access.RoleStudent, ObjMail, ActSend)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, Grant(access.RoleStudent, ObjMail, ActSend))
	ok, _ = Can(access.RoleStudent, ObjMail, ActSend)
	assert.True(t, ok)

	require.NoError(t, Revoke(access.RoleStudent, ObjMail, ActSend))
	ok, _ = Can(access.RoleStudent, ObjMail, ActSend)
	assert.False(t, ok)
}
