package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eduexamportal/mailroom/internal/config"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PublicNameIndex enforces that no two public templates share a name.
const PublicNameIndex = "idx_email_templates_public_name"

// New creates a new database connection based on configuration
func New(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		// WAL mode and a busy timeout let readers proceed while the single writer works
		dialector = sqlite.Open(cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000")
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		slog.Info("Configured SQLite with WAL mode and single connection")
		return db, nil
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 100
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 60
	}

	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

	slog.Info("Configured PostgreSQL connection pool",
		"max_idle_conns", maxIdleConns,
		"max_open_conns", maxOpenConns,
		"conn_max_lifetime_min", connMaxLifetime)

	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate runs database migrations for all models and seeds the default
// templates.
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.EmailTemplate{},
		&models.Job{},
		&models.AuditLog{},
		&models.Setting{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Partial index syntax is shared by SQLite and PostgreSQL.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + PublicNameIndex +
		` ON email_templates (template_name) WHERE visibility = 'public'`).Error
	if err != nil {
		return fmt.Errorf("failed to create public name index: %w", err)
	}

	if err := SeedDefaultTemplates(db); err != nil {
		return fmt.Errorf("failed to seed default templates: %w", err)
	}

	return nil
}
