package db

import (
	"path/filepath"
	"testing"

	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test db")
	require.NoError(t, Migrate(db), "failed to migrate")
	return db
}

func TestGetOrCreateInstanceID_CreatesNewID(t *testing.T) {
	db := setupTestDB(t)

	id, err := GetOrCreateInstanceID(db)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err, "instance ID is not a valid UUID")

	var stored models.Setting
	require.NoError(t, db.Where("key = ?", models.SettingInstanceID).First(&stored).Error)
	assert.Equal(t, id, stored.Value)
}

func TestGetOrCreateInstanceID_ReturnsExistingID(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Setting{Key: models.SettingInstanceID, Value: "existing-instance"}).Error)

	id, err := GetOrCreateInstanceID(db)
	require.NoError(t, err)
	assert.Equal(t, "existing-instance", id)

	again, err := GetOrCreateInstanceID(db)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestPutSetting_Overwrites(t *testing.T) {
	db := setupTestDB(t)

	_, ok, err := GetSetting(db, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, PutSetting(db, "k", "one"))
	require.NoError(t, PutSetting(db, "k", "two"))

	v, ok, err := GetSetting(db, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}
