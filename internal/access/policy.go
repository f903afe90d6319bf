package access

// CanList reports whether t shows up in c's template listing.
//
// Default templates are scoped by role: admins see every default, teachers see
// teacher defaults, nobody else sees them. Custom templates are visible only to
// their creator and the allow-list, admins included.
func CanList(c Caller, t Template) bool {
	if t.ownedBy(c.ID) {
		return true
	}
	if t.IsDefault {
		return c.Role.IsAdmin() || (c.Role == RoleTeacher && t.Role == RoleTeacher)
	}
	switch t.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityCustom:
		return t.allows(c.ID)
	}
	return c.Role.IsAdmin()
}

// CanEdit reports whether c may modify t in place. Default templates are never
// editable through this path; they have to be copied first.
func CanEdit(c Caller, t Template) bool {
	return AuthorizeEdit(c, &t) == nil
}

// CanDelete reports whether c may remove t. No role may delete a default.
func CanDelete(c Caller, t Template) bool {
	return AuthorizeDelete(c, &t) == nil
}

// CanSetActive is the role clause of activation: admins may activate any
// template, everyone else only templates written for their own role. It is
// necessary but not sufficient; see AuthorizeSetActive.
func CanSetActive(c Caller, t Template) bool {
	if c.Role.IsAdmin() {
		return true
	}
	return ParseRole(string(t.Role)) == ParseRole(string(c.Role))
}

// CanAccess is the reachability clause of activation. Admins bypass it.
func CanAccess(c Caller, t Template) bool {
	return c.Role.IsAdmin() || CanList(c, t)
}

// ListOptions narrows a listing beyond the visibility rules.
type ListOptions struct {
	// Type keeps only templates of this type when set.
	Type TemplateType
	// ExcludeDefaults drops default templates the caller does not own,
	// for admins as well.
	ExcludeDefaults bool
}

// ListVisible returns the subset of items c may see, preserving order.
// Templates failing the rules are omitted silently.
func ListVisible[T Guarded](c Caller, items []T, opts ListOptions) []T {
	visible := make([]T, 0, len(items))
	for _, item := range items {
		t := item.AccessTemplate()
		if opts.Type != "" && t.Type != opts.Type {
			continue
		}
		if opts.ExcludeDefaults && t.IsDefault && !t.ownedBy(c.ID) {
			continue
		}
		if CanList(c, t) {
			visible = append(visible, item)
		}
	}
	return visible
}

// AuthorizeCreate checks that c holds a role allowed to author templates.
func AuthorizeCreate(c Caller) error {
	if !c.Role.CanAuthor() {
		return forbidden(InsufficientRole, "Insufficient permissions")
	}
	return nil
}

// AuthorizeEdit returns nil when c may edit t.
func AuthorizeEdit(c Caller, t *Template) error {
	if t == nil {
		return ErrNotFound
	}
	if t.IsDefault {
		return forbidden(EditDefaultTemplate, "Cannot edit system default templates. Please create a copy instead.")
	}
	if c.Role.IsAdmin() || t.ownedBy(c.ID) {
		return nil
	}
	return forbidden(NotOwner, "You do not have permission to edit this template")
}

// AuthorizeDelete returns nil when c may delete t.
func AuthorizeDelete(c Caller, t *Template) error {
	if t == nil {
		return ErrNotFound
	}
	if t.IsDefault {
		return forbidden(DeleteDefaultTemplate, "Cannot delete system default templates")
	}
	switch c.Role {
	case RoleAdmin:
		return nil
	case RoleTeacher:
		if t.ownedBy(c.ID) {
			return nil
		}
		return forbidden(NotOwner, "You can only delete templates you created")
	}
	return forbidden(InsufficientRole, "Insufficient permissions")
}

// AuthorizeSetActive checks both activation clauses and resolves the slot the
// template would occupy for c. Applying the returned assignment twice leaves
// the same state as applying it once.
func AuthorizeSetActive(c Caller, t *Template) (Assignment, error) {
	if t == nil {
		return Assignment{}, ErrNotFound
	}
	if !CanSetActive(c, *t) {
		return Assignment{}, forbidden(RoleMismatch,
			"Cannot set this template as active. This template is for "+string(t.Role)+" users only.")
	}
	if !CanAccess(c, *t) {
		return Assignment{}, forbidden(NotReachable, "You do not have permission to use this template")
	}
	slot, err := SlotFor(t.Type)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{UserID: c.ID, Slot: slot, TemplateID: t.ID}, nil
}
