package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and parameterises a blob backend.
type Config struct {
	Driver        string
	FSRoot        string
	PublicBaseURL string
	S3            S3Config
}

// Open selects a blob.Store implementation from cfg. An empty driver falls
// back to the filesystem store rooted at ./blobdata.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, cfg.PublicBaseURL)
	case DriverS3:
		s3cfg := cfg.S3
		if s3cfg.PublicBaseURL == "" {
			s3cfg.PublicBaseURL = cfg.PublicBaseURL
		}
		return NewS3(ctx, s3cfg)
	case DriverMemory:
		return NewMemory(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
