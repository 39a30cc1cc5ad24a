// Package core holds the blob storage contract shared by the facade and the
// infra drivers.
package core

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // User metadata (small, flat key-value)
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"` // durable public URL
}

// Store provides a thin S3-like abstraction used by the media adapter.
// Semantics mirror a minimal subset of S3 so that an S3 / MinIO adapter is
// nearly 1:1 while the filesystem adapter emulates them.
type Store interface {
	// Put stores a new blob at key. MUST fail if the key already exists.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get retrieves the blob contents and metadata.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes a blob. Returns (false, nil) if not found.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns blobs whose key has the provided prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// Driver returns the configured backend driver string.
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("blobstore: unsupported operation")

// ErrNotFound is returned by Get and Head for unknown keys.
var ErrNotFound = errors.New("blobstore: not found")

// ErrInvalidKey is wrapped by drivers that reject a key outright.
var ErrInvalidKey = errors.New("blobstore: invalid key")

// JoinURL appends key to a public base URL. An empty base yields "".
func JoinURL(base, key string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return ""
	}
	return u.JoinPath(key).String()
}
