package access

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func caller(role Role) Caller {
	return Caller{ID: uuid.New(), Role: role}
}

func templateOf(c Caller, vis Visibility) Template {
	return Template{
		ID:         uuid.New(),
		Name:       "welcome",
		Type:       TypeExamReminder,
		Visibility: vis,
		Role:       c.Role,
		CreatedBy:  c.ID,
	}
}

func defaultTemplate(role Role) Template {
	return Template{
		ID:         uuid.New(),
		Name:       "default " + string(role),
		Type:       TypeExamReminder,
		Visibility: VisibilityPublic,
		IsDefault:  true,
		Role:       role,
	}
}

func TestCanList(t *testing.T) {
	admin := caller(RoleAdmin)
	teacher := caller(RoleTeacher)
	other := caller(RoleTeacher)
	student := caller(RoleStudent)

	custom := templateOf(teacher, VisibilityCustom)
	custom.AllowedUserIDs = []uuid.UUID{other.ID}

	tests := []struct {
		name string
		c    Caller
		t    Template
		want bool
	}{
		{"own private", teacher, templateOf(teacher, VisibilityPrivate), true},
		{"other's private", other, templateOf(teacher, VisibilityPrivate), false},
		{"admin sees other's private", admin, templateOf(teacher, VisibilityPrivate), true},
		{"public non-default", student, templateOf(teacher, VisibilityPublic), true},
		{"custom allowed", other, custom, true},
		{"custom not allowed", student, custom, false},
		{"custom not allowed admin", admin, custom, false},
		{"teacher default for teacher", teacher, defaultTemplate(RoleTeacher), true},
		{"admin default for teacher", teacher, defaultTemplate(RoleAdmin), false},
		{"admin sees all defaults", admin, defaultTemplate(RoleTeacher), true},
		{"student sees no defaults", student, defaultTemplate(RoleTeacher), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanList(tt.c, tt.t))
		})
	}
}

func TestDefaultTemplatesAreNeverEditableOrDeletable(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleTeacher, RoleStudent} {
		for _, tplRole := range []Role{RoleAdmin, RoleTeacher} {
			c := caller(role)
			tpl := defaultTemplate(tplRole)
			tpl.CreatedBy = c.ID

			assert.False(t, CanEdit(c, tpl), "edit role=%s template=%s", role, tplRole)
			assert.False(t, CanDelete(c, tpl), "delete role=%s template=%s", role, tplRole)
		}
	}

	var fe *ForbiddenError
	require.ErrorAs(t, AuthorizeEdit(caller(RoleAdmin), ptr(defaultTemplate(RoleAdmin))), &fe)
	assert.Equal(t, EditDefaultTemplate, fe.Reason)
	require.ErrorAs(t, AuthorizeDelete(caller(RoleAdmin), ptr(defaultTemplate(RoleAdmin))), &fe)
	assert.Equal(t, DeleteDefaultTemplate, fe.Reason)
}

func TestPrivateTemplateOfAnotherTeacher(t *testing.T) {
	owner := caller(RoleTeacher)
	other := caller(RoleTeacher)
	tpl := templateOf(owner, VisibilityPrivate)

	assert.False(t, CanList(other, tpl))
	assert.False(t, CanEdit(other, tpl))
	assert.False(t, CanDelete(other, tpl))

	assert.True(t, CanEdit(owner, tpl))
	assert.True(t, CanDelete(owner, tpl))
}

func TestAuthorizeDelete(t *testing.T) {
	teacher := caller(RoleTeacher)
	tpl := templateOf(teacher, VisibilityPublic)

	assert.NoError(t, AuthorizeDelete(caller(RoleAdmin), &tpl))
	assert.NoError(t, AuthorizeDelete(teacher, &tpl))

	var fe *ForbiddenError
	require.ErrorAs(t, AuthorizeDelete(caller(RoleTeacher), &tpl), &fe)
	assert.Equal(t, NotOwner, fe.Reason)

	student := caller(RoleStudent)
	own := templateOf(student, VisibilityPrivate)
	require.ErrorAs(t, AuthorizeDelete(student, &own), &fe)
	assert.Equal(t, InsufficientRole, fe.Reason)

	assert.ErrorIs(t, AuthorizeDelete(teacher, nil), ErrNotFound)
	assert.ErrorIs(t, AuthorizeEdit(teacher, nil), ErrNotFound)
}

func TestAuthorizeEdit(t *testing.T) {
	teacher := caller(RoleTeacher)
	tpl := templateOf(teacher, VisibilityPublic)

	assert.NoError(t, AuthorizeEdit(teacher, &tpl))
	assert.NoError(t, AuthorizeEdit(caller(RoleAdmin), &tpl))

	var fe *ForbiddenError
	require.ErrorAs(t, AuthorizeEdit(caller(RoleTeacher), &tpl), &fe)
	assert.Equal(t, NotOwner, fe.Reason)
}

func TestSetActive_AdminBypassesRoleAndReachability(t *testing.T) {
	admin := caller(RoleAdmin)
	teacher := caller(RoleTeacher)
	tpl := templateOf(teacher, VisibilityPublic)
	tpl.Role = RoleTeacher

	assert.True(t, CanSetActive(admin, tpl))

	private := templateOf(teacher, VisibilityPrivate)
	a, err := AuthorizeSetActive(admin, &private)
	require.NoError(t, err)
	assert.Equal(t, Assignment{UserID: admin.ID, Slot: SlotExamReminder, TemplateID: private.ID}, a)
}

func TestSetActive_NonAdmin(t *testing.T) {
	teacher := caller(RoleTeacher)
	adminTpl := templateOf(caller(RoleAdmin), VisibilityPublic)

	assert.False(t, CanSetActive(teacher, adminTpl))
	var fe *ForbiddenError
	_, err := AuthorizeSetActive(teacher, &adminTpl)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, RoleMismatch, fe.Reason)

	// Role matches, but the private template belongs to someone else.
	private := templateOf(caller(RoleTeacher), VisibilityPrivate)
	_, err = AuthorizeSetActive(teacher, &private)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, NotReachable, fe.Reason)

	public := templateOf(caller(RoleTeacher), VisibilityPublic)
	a, err := AuthorizeSetActive(teacher, &public)
	require.NoError(t, err)
	assert.Equal(t, SlotExamReminder, a.Slot)
}

func TestSetActive_RoleComparisonIgnoresCase(t *testing.T) {
	teacher := Caller{ID: uuid.New(), Role: ParseRole(" Teacher ")}
	tpl := Template{Role: "TEACHER", Visibility: VisibilityPublic, Type: TypeTeacherInvitation}
	assert.True(t, CanSetActive(teacher, tpl))
}

func TestSetActive_UnknownType(t *testing.T) {
	admin := caller(RoleAdmin)
	tpl := templateOf(admin, VisibilityPublic)
	tpl.Type = TypeStudentInvitation

	_, err := AuthorizeSetActive(admin, &tpl)
	var ute *UnknownTemplateTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "student_invitation", ute.Type)
}

func TestSetActive_Idempotent(t *testing.T) {
	teacher := caller(RoleTeacher)
	tpl := templateOf(teacher, VisibilityPrivate)

	slots := map[Slot]uuid.UUID{}
	for i := 0; i < 2; i++ {
		a, err := AuthorizeSetActive(teacher, &tpl)
		require.NoError(t, err)
		slots[a.Slot] = a.TemplateID
	}
	assert.Equal(t, map[Slot]uuid.UUID{SlotExamReminder: tpl.ID}, slots)
}

func TestListVisible(t *testing.T) {
	teacher := caller(RoleTeacher)
	mine := templateOf(teacher, VisibilityPrivate)
	hidden := templateOf(caller(RoleTeacher), VisibilityPrivate)
	shared := templateOf(caller(RoleTeacher), VisibilityPublic)
	shared.Type = TypeTeacherInvitation
	def := defaultTemplate(RoleTeacher)

	all := []Template{mine, hidden, shared, def}

	got := ListVisible(teacher, all, ListOptions{})
	assert.Equal(t, []Template{mine, shared, def}, got)

	got = ListVisible(teacher, all, ListOptions{ExcludeDefaults: true})
	assert.Equal(t, []Template{mine, shared}, got)

	got = ListVisible(teacher, all, ListOptions{Type: TypeTeacherInvitation})
	assert.Equal(t, []Template{shared}, got)
}

func TestListVisible_ExcludeDefaultsAppliesToAdmins(t *testing.T) {
	admin := caller(RoleAdmin)
	own := defaultTemplate(RoleAdmin)
	own.CreatedBy = admin.ID
	all := []Template{defaultTemplate(RoleAdmin), defaultTemplate(RoleTeacher), own}

	assert.Len(t, ListVisible(admin, all, ListOptions{}), 3)
	assert.Equal(t, []Template{own}, ListVisible(admin, all, ListOptions{ExcludeDefaults: true}))
}

func TestAuthorizeCreate(t *testing.T) {
	assert.NoError(t, AuthorizeCreate(caller(RoleAdmin)))
	assert.NoError(t, AuthorizeCreate(caller(RoleTeacher)))
	assert.Error(t, AuthorizeCreate(caller(RoleStudent)))
	assert.Error(t, AuthorizeCreate(Caller{ID: uuid.New(), Role: ParseRole("proctor")}))
}

func ptr(t Template) *Template { return &t }
