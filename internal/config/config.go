package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Log       LogConfig       `mapstructure:"log"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
	LogLevel        string `mapstructure:"log_level"`         // "silent", "error", "warn", "info"
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// QueueConfig holds mail job queue configuration
type QueueConfig struct {
	Type       string `mapstructure:"type"`        // "memory" or "valkey"
	ValkeyAddr string `mapstructure:"valkey_addr"` // e.g. "localhost:6379"
	Workers    int    `mapstructure:"workers"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`
}

// MailConfig selects and configures the outbound mail transport.
type MailConfig struct {
	Driver         string     `mapstructure:"driver"` // "log", "smtp" or "sendgrid"
	FromAddress    string     `mapstructure:"from_address"`
	FromName       string     `mapstructure:"from_name"`
	BrandName      string     `mapstructure:"brand_name"`
	SendGridAPIKey string     `mapstructure:"sendgrid_api_key"`
	SMTP           SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds credentials for the smtp driver.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// RateLimitConfig bounds login attempts per client IP.
type RateLimitConfig struct {
	LoginRPS   float64 `mapstructure:"login_rps"`
	LoginBurst int     `mapstructure:"login_burst"`
}

// Load reads configuration from .env, the config file and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	// .env is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mailroom/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MAILROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8470)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./mailroom.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.valkey_addr", "localhost:6379")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from_address", "no-reply@eduexamportal.local")
	v.SetDefault("mail.from_name", "EduExamPortal")
	v.SetDefault("mail.brand_name", "EduExamPortal")
	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("ratelimit.login_rps", 1.0)
	v.SetDefault("ratelimit.login_burst", 5)
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Queue.Type {
	case "memory", "valkey":
	default:
		return fmt.Errorf("unsupported queue type: %s", c.Queue.Type)
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.SMTP.Host == "" {
			return fmt.Errorf("mail.smtp.host is required for the smtp driver")
		}
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return fmt.Errorf("mail.sendgrid_api_key is required for the sendgrid driver")
		}
	default:
		return fmt.Errorf("unsupported mail driver: %s", c.Mail.Driver)
	}
	return nil
}
