package db

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultTemplate is one entry of the embedded seed file.
type DefaultTemplate struct {
	Role         string `yaml:"role"`
	TemplateType string `yaml:"template_type"`
	TemplateName string `yaml:"template_name"`
	Description  string `yaml:"description"`
	Subject      string `yaml:"subject"`
	MainMessage  string `yaml:"main_message"`
}

// LoadDefaultTemplates parses a seed file and checks every entry names a
// known role and template type.
func LoadDefaultTemplates(data []byte) ([]DefaultTemplate, error) {
	var file struct {
		Templates []DefaultTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse default templates: %w", err)
	}

	seen := make(map[string]bool)
	for i, d := range file.Templates {
		role := access.ParseRole(d.Role)
		if !role.CanAuthor() {
			return nil, fmt.Errorf("default template %d: unsupported role %q", i, d.Role)
		}
		if !access.TemplateType(d.TemplateType).Valid() {
			return nil, fmt.Errorf("default template %d: unknown template type %q", i, d.TemplateType)
		}
		key := role.String() + "/" + d.TemplateType
		if seen[key] {
			return nil, fmt.Errorf("default template %d: duplicate entry for %s", i, key)
		}
		seen[key] = true
		file.Templates[i].Role = role.String()
	}
	return file.Templates, nil
}

// SeedDefaultTemplates makes the stored defaults match the embedded seed
// file. It does nothing when the file has not changed since the last run.
func SeedDefaultTemplates(db *gorm.DB) error {
	sum := sha256.Sum256(defaultsYAML)
	checksum := hex.EncodeToString(sum[:])

	stored, _, err := GetSetting(db, models.SettingDefaultsChecksum)
	if err != nil {
		return err
	}
	if stored == checksum {
		return nil
	}

	defaults, err := LoadDefaultTemplates(defaultsYAML)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, d := range defaults {
			if err := upsertDefault(tx, d); err != nil {
				return err
			}
		}
		return PutSetting(tx, models.SettingDefaultsChecksum, checksum)
	})
}

func upsertDefault(tx *gorm.DB, d DefaultTemplate) error {
	var existing models.EmailTemplate
	err := tx.Where("is_default = ? AND role = ? AND template_type = ?", true, d.Role, d.TemplateType).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		holder, err := publicNameHolder(tx, d.TemplateName, uuid.Nil)
		if err != nil {
			return err
		}
		if holder != nil {
			return fmt.Errorf("default template %s/%s: public name %q is already used by template %s",
				d.Role, d.TemplateType, d.TemplateName, holder.ID)
		}
		tpl := models.EmailTemplate{
			TemplateName: d.TemplateName,
			TemplateType: d.TemplateType,
			Description:  d.Description,
			Subject:      d.Subject,
			MainMessage:  d.MainMessage,
			Visibility:   string(access.VisibilityPublic),
			IsDefault:    true,
			Role:         d.Role,
		}
		if err := tx.Create(&tpl).Error; err != nil {
			return fmt.Errorf("failed to create default template %q: %w", d.TemplateName, err)
		}
		slog.Info("Created default template", "role", d.Role, "template_type", d.TemplateType)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up default template: %w", err)
	}

	name := d.TemplateName
	if name != existing.TemplateName {
		holder, err := publicNameHolder(tx, name, existing.ID)
		if err != nil {
			return err
		}
		if holder != nil {
			slog.Warn("Keeping default template name; the new name is taken by a public template",
				"role", d.Role,
				"template_type", d.TemplateType,
				"name", existing.TemplateName,
				"wanted", name,
				"taken_by", holder.ID)
			name = existing.TemplateName
		}
	}

	err = tx.Model(&existing).Updates(map[string]interface{}{
		"template_name": name,
		"description":   d.Description,
		"subject":       d.Subject,
		"main_message":  d.MainMessage,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update default template %q: %w", d.TemplateName, err)
	}
	slog.Info("Updated default template", "role", d.Role, "template_type", d.TemplateType)
	return nil
}

// publicNameHolder returns the public template other than self named name,
// or nil when the name is free.
func publicNameHolder(tx *gorm.DB, name string, self uuid.UUID) (*models.EmailTemplate, error) {
	var holder models.EmailTemplate
	err := tx.Where("visibility = ? AND template_name = ? AND id <> ?", string(access.VisibilityPublic), name, self).
		First(&holder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check default template name: %w", err)
	}
	return &holder, nil
}
