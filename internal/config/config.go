// Package config loads the server configuration from an optional YAML file
// and BUILDCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

type (
	// Config is the root configuration tree.
	Config struct {
		App     App     `yaml:"app"`
		HTTP    HTTP    `yaml:"http"`
		Log     Log     `yaml:"log"`
		Storage Storage `yaml:"storage"`
		Blob    Blob    `yaml:"blob"`
		Media   Media   `yaml:"media"`
		Mail    Mail    `yaml:"mail"`
	}

	// App identifies the deployment.
	App struct {
		Name string `yaml:"name" env:"BUILDCORE_APP_NAME"`
	}

	// HTTP configures the JSON API server.
	HTTP struct {
		Addr            string        `yaml:"addr" env:"BUILDCORE_HTTP_ADDR"`
		ReadTimeout     time.Duration `yaml:"read-timeout" env:"BUILDCORE_HTTP_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write-timeout" env:"BUILDCORE_HTTP_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"BUILDCORE_HTTP_SHUTDOWN_TIMEOUT"`
		AdminToken      string        `yaml:"admin-token" env:"BUILDCORE_ADMIN_TOKEN"`
		// ContactPerMinute is the sustained contact submissions allowed per client IP.
		ContactPerMinute float64 `yaml:"contact-per-minute" env:"BUILDCORE_CONTACT_PER_MINUTE"`
		ContactBurst     int     `yaml:"contact-burst" env:"BUILDCORE_CONTACT_BURST"`
	}

	// Log configures zap.
	Log struct {
		Level  string `yaml:"level" env:"BUILDCORE_LOG_LEVEL"`
		Format string `yaml:"format" env:"BUILDCORE_LOG_FORMAT"`
	}

	// Storage selects the resource store.
	Storage struct {
		Driver      string `yaml:"driver" env:"BUILDCORE_STORAGE_DRIVER"`
		SQLitePath  string `yaml:"sqlite-path" env:"BUILDCORE_SQLITE_PATH"`
		PostgresDSN string `yaml:"postgres-dsn" env:"BUILDCORE_POSTGRES_DSN"`
	}

	// Blob selects the media backend.
	Blob struct {
		Driver        string `yaml:"driver" env:"BUILDCORE_BLOB_DRIVER"`
		FSRoot        string `yaml:"fs-root" env:"BUILDCORE_BLOB_FS_ROOT"`
		PublicBaseURL string `yaml:"public-base-url" env:"BUILDCORE_BLOB_PUBLIC_URL"`
		S3            S3     `yaml:"s3"`
	}

	// S3 configures the S3/MinIO driver.
	S3 struct {
		Bucket          string `yaml:"bucket" env:"BUILDCORE_S3_BUCKET"`
		Region          string `yaml:"region" env:"BUILDCORE_S3_REGION"`
		Endpoint        string `yaml:"endpoint" env:"BUILDCORE_S3_ENDPOINT"`
		AccessKeyID     string `yaml:"access-key-id" env:"BUILDCORE_S3_ACCESS_KEY_ID"`
		SecretAccessKey string `yaml:"secret-access-key" env:"BUILDCORE_S3_SECRET_ACCESS_KEY"`
		PathStyle       bool   `yaml:"path-style" env:"BUILDCORE_S3_PATH_STYLE"`
	}

	// Media bounds accepted uploads.
	Media struct {
		MaxBytes     int64    `yaml:"max-bytes" env:"BUILDCORE_MEDIA_MAX_BYTES"`
		AllowedTypes []string `yaml:"allowed-types" env:"BUILDCORE_MEDIA_ALLOWED_TYPES"`
	}

	// Mail configures contact notifications. An empty host selects the log notifier.
	Mail struct {
		Host     string `yaml:"host" env:"BUILDCORE_SMTP_HOST"`
		Port     int    `yaml:"port" env:"BUILDCORE_SMTP_PORT"`
		User     string `yaml:"user" env:"BUILDCORE_SMTP_USER"`
		Password string `yaml:"password" env:"BUILDCORE_SMTP_PASSWORD"`
		From     string `yaml:"from" env:"BUILDCORE_SMTP_FROM"`
		To       string `yaml:"to" env:"BUILDCORE_ADMIN_EMAIL"`
		Retries  uint64 `yaml:"retries" env:"BUILDCORE_SMTP_RETRIES"`
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "buildcore"
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.ReadTimeout = 15 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.HTTP.ContactPerMinute = 5
	cfg.HTTP.ContactBurst = 3
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Storage.Driver = StorageSQLite
	cfg.Storage.SQLitePath = "buildcore.db"
	cfg.Blob.Driver = BlobFilesystem
	cfg.Blob.FSRoot = "./blobdata"
	cfg.Blob.PublicBaseURL = "http://localhost:8080/media"
	cfg.Blob.S3.Region = "us-east-1"
	cfg.Media.MaxBytes = 5 << 20
	cfg.Media.AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	cfg.Mail.Port = 587
	cfg.Mail.Retries = 3
	return cfg
}

// NewConfig loads defaults, then the YAML file at path (if any), then the environment.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	for i, t := range c.Media.AllowedTypes {
		c.Media.AllowedTypes[i] = strings.ToLower(strings.TrimSpace(t))
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 blob driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("media max-bytes must be positive"))
	}
	if c.HTTP.ContactPerMinute < 0 || c.HTTP.ContactBurst < 0 {
		errs = append(errs, errors.New("contact rate limits must not be negative"))
	}
	if c.Mail.Host != "" && c.Mail.To == "" {
		errs = append(errs, errors.New("admin email is required when smtp host is set"))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
