package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Storage.Driver != StorageSQLite || cfg.Blob.Driver != BlobFilesystem {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestNewConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildcore.yaml")
	yaml := `
http:
  addr: ":9090"
  read-timeout: 5s
storage:
  driver: memory
blob:
  driver: s3
  s3:
    bucket: site-media
media:
  allowed-types: ["image/png"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BUILDCORE_HTTP_ADDR", ":7070")
	t.Setenv("BUILDCORE_ADMIN_TOKEN", "secret")
	t.Setenv("BUILDCORE_BLOB_DRIVER", "S3")

	cfg, err := NewConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("env should override file, got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second || cfg.Storage.Driver != StorageMemory {
		t.Fatalf("file values not applied: %+v", cfg.HTTP)
	}
	if cfg.HTTP.AdminToken != "secret" || cfg.Blob.Driver != BlobS3 || cfg.Blob.S3.Bucket != "site-media" {
		t.Fatalf("unexpected merged config %+v", cfg)
	}
	if len(cfg.Media.AllowedTypes) != 1 || cfg.Media.AllowedTypes[0] != "image/png" {
		t.Fatalf("unexpected allowed types %v", cfg.Media.AllowedTypes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewConfig_MissingFile(t *testing.T) {
	if _, err := NewConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Addr = " "
	cfg.Storage.Driver = "mongo"
	cfg.Blob.Driver = BlobS3
	cfg.Media.MaxBytes = 0
	cfg.Mail.Host = "smtp.example.com"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"http addr", "unknown storage driver", "s3 bucket", "max-bytes", "admin email", "log format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}

	pg := Default()
	pg.Storage.Driver = StoragePostgres
	if err := pg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres dsn") {
		t.Fatalf("expected postgres dsn error, got %v", err)
	}
	pg.Storage.PostgresDSN = "postgres://localhost/site"
	if err := pg.Validate(); err != nil {
		t.Fatalf("postgres with dsn should validate: %v", err)
	}
}
