package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/audit"
	"github.com/eduexamportal/mailroom/internal/metrics"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateService stores email templates and applies the access rules to
// every read and write.
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// List returns the templates caller may see, newest first, each with its
// creator summary.
func (s *TemplateService) List(ctx context.Context, caller access.Caller, req ListRequest) ([]models.EmailTemplate, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if req.TemplateType != "" {
		query = query.Where("template_type = ?", req.TemplateType)
	}

	var rows []models.EmailTemplate
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	visible := access.ListVisible(caller, rows, access.ListOptions{
		Type:            access.TemplateType(req.TemplateType),
		ExcludeDefaults: !req.IncludeDefaults,
	})

	if err := s.attachCreators(ctx, visible); err != nil {
		return nil, err
	}
	return visible, nil
}

func (s *TemplateService) attachCreators(ctx context.Context, templates []models.EmailTemplate) error {
	ids := make([]uuid.UUID, 0, len(templates))
	seen := make(map[uuid.UUID]bool)
	for _, t := range templates {
		if t.CreatedBy != nil && !seen[*t.CreatedBy] {
			seen[*t.CreatedBy] = true
			ids = append(ids, *t.CreatedBy)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return fmt.Errorf("load template creators: %w", err)
	}
	byID := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for i := range templates {
		if templates[i].CreatedBy == nil {
			continue
		}
		if u, ok := byID[*templates[i].CreatedBy]; ok {
			templates[i].Creator = models.NewCreatorSummary(u)
		}
	}
	return nil
}

// Get returns a template caller may see. Templates outside caller's listing
// are reported as not found.
func (s *TemplateService) Get(ctx context.Context, caller access.Caller, id uuid.UUID) (*models.EmailTemplate, error) {
	tpl, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !access.CanList(caller, tpl.AccessTemplate()) {
		return nil, access.ErrNotFound
	}
	return tpl, nil
}

func (s *TemplateService) load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, access.ErrNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	return &tpl, nil
}

// lockForUpdate makes the next read take a row lock on PostgreSQL. SQLite has
// no row locks; its writers are already serialized.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// publicNamed returns the public templates using name, for the duplicate
// name check.
func (s *TemplateService) publicNamed(ctx context.Context, tx *gorm.DB, name string) ([]access.Template, error) {
	var rows []models.EmailTemplate
	err := tx.WithContext(ctx).
		Where("visibility = ? AND template_name = ?", string(access.VisibilityPublic), name).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("check template name: %w", err)
	}
	out := make([]access.Template, len(rows))
	for i, r := range rows {
		out[i] = r.AccessTemplate()
	}
	return out, nil
}

// Create validates and stores a new template owned by caller. When
// req.SetActive is set the template is then activated for caller; an
// activation failure is logged and leaves the template in place.
func (s *TemplateService) Create(ctx context.Context, caller access.Caller, req CreateRequest) (*CreateResult, error) {
	if err := access.AuthorizeCreate(caller); err != nil {
		s.denied("create", caller, uuid.Nil, err)
		return nil, err
	}

	existing, err := s.publicNamed(ctx, s.db, req.Payload.Name)
	if err != nil {
		return nil, err
	}
	n, err := access.ValidateTemplatePayload(req.Payload, existing, uuid.Nil)
	if err != nil {
		return nil, err
	}

	at := access.NewTemplate(caller, n)
	createdBy := at.CreatedBy
	tpl := models.EmailTemplate{
		TemplateName:   n.Name,
		TemplateType:   string(n.Type),
		Description:    n.Description,
		Subject:        n.Subject,
		MainMessage:    n.MainMessage,
		Visibility:     string(n.Visibility),
		AllowedUserIDs: n.AllowedUserIDs,
		IsDefault:      at.IsDefault,
		Role:           at.Role.String(),
		CreatedBy:      &createdBy,
	}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, errDuplicatePublicName
		}
		return nil, fmt.Errorf("create template: %w", err)
	}

	audit.Record(s.db, caller.ID, audit.ActionCreateTemplate, audit.TemplateResource(tpl.ID), map[string]interface{}{
		"template_name": tpl.TemplateName,
		"template_type": tpl.TemplateType,
		"visibility":    tpl.Visibility,
	})

	result := &CreateResult{Template: &tpl}
	if req.SetActive {
		if _, err := s.SetActive(ctx, caller, tpl.ID); err != nil {
			slog.Warn("Template created but could not be activated",
				"user_id", caller.ID, "template_id", tpl.ID, "error", err)
		} else {
			result.Activated = true
		}
	}
	return result, nil
}

// Update replaces the editable fields of a template. Ownership, role and the
// default flag never change.
func (s *TemplateService) Update(ctx context.Context, caller access.Caller, id uuid.UUID, p access.Payload) (*models.EmailTemplate, error) {
	var updated *models.EmailTemplate

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := s.load(ctx, lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		at := tpl.AccessTemplate()
		if err := access.AuthorizeEdit(caller, &at); err != nil {
			s.denied("edit", caller, id, err)
			return err
		}

		existing, err := s.publicNamed(ctx, tx, p.Name)
		if err != nil {
			return err
		}
		n, err := access.ValidateTemplatePayload(p, existing, id)
		if err != nil {
			return err
		}

		// A template whose type changes can no longer sit in the old slot.
		if string(n.Type) != tpl.TemplateType {
			if err := clearSlotReferences(tx, access.TemplateType(tpl.TemplateType), id); err != nil {
				return err
			}
		}

		tpl.TemplateName = n.Name
		tpl.TemplateType = string(n.Type)
		tpl.Description = n.Description
		tpl.Subject = n.Subject
		tpl.MainMessage = n.MainMessage
		tpl.Visibility = string(n.Visibility)
		tpl.AllowedUserIDs = n.AllowedUserIDs

		if err := tx.Save(tpl).Error; err != nil {
			if isUniqueViolation(err) {
				return errDuplicatePublicName
			}
			return fmt.Errorf("update template: %w", err)
		}
		updated = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.Record(s.db, caller.ID, audit.ActionUpdateTemplate, audit.TemplateResource(id), map[string]interface{}{
		"template_name": updated.TemplateName,
		"visibility":    updated.Visibility,
	})
	return updated, nil
}

// Delete removes a template and clears every active slot pointing at it in
// the same transaction.
func (s *TemplateService) Delete(ctx context.Context, caller access.Caller, id uuid.UUID) error {
	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := s.load(ctx, lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		at := tpl.AccessTemplate()
		if err := access.AuthorizeDelete(caller, &at); err != nil {
			s.denied("delete", caller, id, err)
			return err
		}

		// The row goes first so a concurrent SetActive either waits on it or
		// no longer finds it; the slot sweep then sees every committed pointer.
		if err := tx.Delete(&models.EmailTemplate{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		if err := clearAllSlotReferences(tx, id); err != nil {
			return err
		}
		name = tpl.TemplateName
		return nil
	})
	if err != nil {
		return err
	}

	audit.Record(s.db, caller.ID, audit.ActionDeleteTemplate, audit.TemplateResource(id), map[string]interface{}{
		"template_name": name,
	})
	return nil
}

// clearAllSlotReferences nulls every user slot that points at id. Every slot
// is checked, not only the one matching the template's type, so stale
// pointers from older data are cleared as well.
func clearAllSlotReferences(tx *gorm.DB, id uuid.UUID) error {
	for _, slot := range access.Slots {
		col, _ := models.SlotColumn(slot)
		err := tx.Model(&models.User{}).
			Where(col+" = ?", id).
			Update(col, nil).Error
		if err != nil {
			return fmt.Errorf("clear %s references: %w", slot, err)
		}
	}
	return nil
}

func clearSlotReferences(tx *gorm.DB, t access.TemplateType, id uuid.UUID) error {
	slot, err := access.SlotFor(t)
	if err != nil {
		// Types without a slot cannot be referenced.
		return nil
	}
	col, _ := models.SlotColumn(slot)
	if err := tx.Model(&models.User{}).Where(col+" = ?", id).Update(col, nil).Error; err != nil {
		return fmt.Errorf("clear %s references: %w", slot, err)
	}
	return nil
}

// SetActive points caller's slot for the template's type at the template.
// Activating the already active template is a no-op that still succeeds.
//
// The template is read, authorized and assigned in one transaction, and the
// slot is only written while the template still exists with the type that
// was authorized. A concurrent Delete or type change therefore cannot leave
// the slot pointing at a template that is gone or belongs to another slot.
func (s *TemplateService) SetActive(ctx context.Context, caller access.Caller, id uuid.UUID) (access.Assignment, error) {
	var assignment access.Assignment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := s.load(ctx, lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		at := tpl.AccessTemplate()
		assignment, err = access.AuthorizeSetActive(caller, &at)
		if err != nil {
			s.denied("set_active", caller, id, err)
			return err
		}

		col, ok := models.SlotColumn(assignment.Slot)
		if !ok {
			return &access.UnknownTemplateTypeError{Type: tpl.TemplateType}
		}
		res := tx.Model(&models.User{}).
			Where("id = ?", assignment.UserID).
			Where("EXISTS (SELECT 1 FROM email_templates WHERE email_templates.id = ? AND email_templates.template_type = ?)",
				assignment.TemplateID, tpl.TemplateType).
			Update(col, assignment.TemplateID)
		if res.Error != nil {
			return fmt.Errorf("set active template: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return access.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return access.Assignment{}, err
	}

	audit.Record(s.db, caller.ID, audit.ActionSetActiveTemplate, audit.TemplateResource(id), map[string]interface{}{
		"slot": string(assignment.Slot),
	})
	return assignment, nil
}

// ActiveTemplates returns userID's slot assignments. Unset slots map to nil.
func (s *TemplateService) ActiveTemplates(ctx context.Context, userID uuid.UUID) (map[access.Slot]*uuid.UUID, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user.ActiveTemplates(), nil
}

// ResolveForSending picks the template sender's outgoing mail of type t uses:
// the sender's active template for that slot, else the default for the
// sender's role, else the admin default. An active template that is gone, no
// longer reachable, or now of another type is skipped.
func (s *TemplateService) ResolveForSending(ctx context.Context, sender *models.User, t access.TemplateType) (*models.EmailTemplate, error) {
	slot, err := access.SlotFor(t)
	if err != nil {
		return nil, err
	}

	if id := sender.ActiveTemplate(slot); id != nil {
		tpl, err := s.load(ctx, s.db, *id)
		switch {
		case err == nil && tpl.TemplateType == string(t) && access.CanAccess(sender.Caller(), tpl.AccessTemplate()):
			return tpl, nil
		case err != nil && !errors.Is(err, access.ErrNotFound):
			return nil, err
		}
		slog.Warn("Active template unavailable, falling back to default",
			"user_id", sender.ID, "slot", slot, "template_id", *id)
	}

	for _, role := range []string{access.ParseRole(sender.Role).String(), access.RoleAdmin.String()} {
		var tpl models.EmailTemplate
		err := s.db.WithContext(ctx).
			Where("is_default = ? AND role = ? AND template_type = ?", true, role, string(t)).
			First(&tpl).Error
		if err == nil {
			return &tpl, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load default template: %w", err)
		}
	}
	return nil, access.ErrNotFound
}

// denied logs and counts a refusal from the access rules. Other errors pass
// through silently.
func (s *TemplateService) denied(op string, caller access.Caller, id uuid.UUID, err error) {
	var fe *access.ForbiddenError
	if !errors.As(err, &fe) {
		return
	}
	metrics.AccessDenialsTotal.WithLabelValues(op, string(fe.Reason)).Inc()
	slog.Warn("Template access denied",
		"operation", op,
		"user_id", caller.ID,
		"role", caller.Role,
		"template_id", id,
		"reason", fe.Reason)
}
