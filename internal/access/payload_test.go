package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() Payload {
	return Payload{
		Name:        "Spring invite",
		Type:        string(TypeStudentInvitationWithExam),
		Subject:     "You're invited, {firstName}",
		MainMessage: "<p>Hello {firstName}</p>",
		Visibility:  "private",
	}
}

func TestValidate_MissingFields(t *testing.T) {
	for _, mutate := range []func(*Payload){
		func(p *Payload) { p.Name = "" },
		func(p *Payload) { p.Type = "  " },
		func(p *Payload) { p.Subject = "\t" },
		func(p *Payload) { p.MainMessage = "" },
	} {
		p := validPayload()
		mutate(&p)
		_, err := ValidateTemplatePayload(p, nil, uuid.Nil)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, MissingField, ve.Reason)
	}
}

func TestValidate_InvalidVisibility(t *testing.T) {
	p := validPayload()
	p.Visibility = "Public"
	_, err := ValidateTemplatePayload(p, nil, uuid.Nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvalidVisibility, ve.Reason)
}

func TestValidate_InvalidType(t *testing.T) {
	p := validPayload()
	p.Type = "weekly_digest"
	_, err := ValidateTemplatePayload(p, nil, uuid.Nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvalidTemplateType, ve.Reason)
}

func TestValidate_CustomRequiresUsers(t *testing.T) {
	p := validPayload()
	p.Visibility = "custom"
	_, err := ValidateTemplatePayload(p, nil, uuid.Nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CustomRequiresUsers, ve.Reason)

	p.AllowedUserIDs = []uuid.UUID{uuid.Nil}
	_, err = ValidateTemplatePayload(p, nil, uuid.Nil)
	require.ErrorAs(t, err, &ve)
}

func TestValidate_CustomDedupesAndOthersClear(t *testing.T) {
	u := uuid.New()
	p := validPayload()
	p.Visibility = "custom"
	p.AllowedUserIDs = []uuid.UUID{u, u}
	n, err := ValidateTemplatePayload(p, nil, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u}, n.AllowedUserIDs)

	p.Visibility = "private"
	n, err = ValidateTemplatePayload(p, nil, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, n.AllowedUserIDs)
	assert.Equal(t, TypeStudentInvitationWithExam, n.Type)
}

func TestValidate_DuplicatePublicName(t *testing.T) {
	existing := []Template{
		{ID: uuid.New(), Name: "Spring invite", Visibility: VisibilityPublic},
		{ID: uuid.New(), Name: "Private one", Visibility: VisibilityPrivate},
	}

	p := validPayload()
	p.Visibility = "public"
	_, err := ValidateTemplatePayload(p, existing, uuid.Nil)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, DuplicatePublicName, ce.Reason)

	// Updating the clashing template itself is fine.
	_, err = ValidateTemplatePayload(p, existing, existing[0].ID)
	assert.NoError(t, err)

	// Names are compared case-sensitively.
	p.Name = "spring invite"
	_, err = ValidateTemplatePayload(p, existing, uuid.Nil)
	assert.NoError(t, err)

	// A private template with the same name does not clash.
	p.Name = "Private one"
	_, err = ValidateTemplatePayload(p, existing, uuid.Nil)
	assert.NoError(t, err)

	// Going private never clashes.
	p.Name = "Spring invite"
	p.Visibility = "private"
	_, err = ValidateTemplatePayload(p, existing, uuid.Nil)
	assert.NoError(t, err)
}

func TestNewTemplateStampsCaller(t *testing.T) {
	c := Caller{ID: uuid.New(), Role: RoleTeacher}
	n, err := ValidateTemplatePayload(validPayload(), nil, uuid.Nil)
	require.NoError(t, err)

	tpl := NewTemplate(c, n)
	assert.False(t, tpl.IsDefault)
	assert.Equal(t, c.ID, tpl.CreatedBy)
	assert.Equal(t, RoleTeacher, tpl.Role)
}
