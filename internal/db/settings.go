package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetSetting returns the value stored under key and whether it exists.
func GetSetting(db *gorm.DB, key string) (string, bool, error) {
	var s models.Setting
	err := db.Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return s.Value, true, nil
}

// PutSetting creates or overwrites the value stored under key.
func PutSetting(db *gorm.DB, key, value string) error {
	var s models.Setting
	err := db.Where("key = ?", key).First(&s).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&models.Setting{Key: key, Value: value}).Error
	case err != nil:
		return fmt.Errorf("failed to query setting %s: %w", key, err)
	}
	return db.Model(&s).Update("value", value).Error
}

// GetOrCreateInstanceID retrieves the instance ID, generating and storing
// one on first start. Call it after migrations.
func GetOrCreateInstanceID(db *gorm.DB) (string, error) {
	id, ok, err := GetSetting(db, models.SettingInstanceID)
	if err != nil {
		return "", err
	}
	if ok {
		slog.Info("Found existing instance ID", "instance_id", id)
		return id, nil
	}

	id = uuid.New().String()
	if err := db.Create(&models.Setting{Key: models.SettingInstanceID, Value: id}).Error; err != nil {
		return "", fmt.Errorf("failed to create instance ID: %w", err)
	}

	slog.Info("Generated new instance ID", "instance_id", id)
	return id, nil
}
