// Package media turns a blob.Store into the upload contract used by the
// resource write path: validate an image, store it under a fresh key and
// return its durable public URL.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"buildcore/internal/blob"
	"buildcore/pkg/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxBytes bounds a single upload when no limit is configured.
const DefaultMaxBytes int64 = 5 << 20

// sniffLen is the prefix length http.DetectContentType inspects.
const sniffLen = 512

// DefaultAllowedTypes are the image formats accepted by default.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string // as declared by the client; informational only
	Size        int64  // declared size, 0 when unknown
	Body        io.Reader
}

// Metadata describes what an upload is attached to.
type Metadata struct {
	Kind domain.Kind
}

// Stored is the result of a successful upload.
type Stored struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Config tunes the adapter.
type Config struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Adapter stores uploads in a blob.Store.
type Adapter struct {
	store    blob.Store
	maxBytes int64
	allowed  map[string]struct{}
	logger   *zap.Logger
	newKey   func() string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithKeyFunc overrides blob key generation (tests).
func WithKeyFunc(fn func() string) Option {
	return func(a *Adapter) {
		if fn != nil {
			a.newKey = fn
		}
	}
}

// NewAdapter wires an Adapter over store.
func NewAdapter(store blob.Store, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		store:    store,
		maxBytes: cfg.MaxBytes,
		allowed:  make(map[string]struct{}),
		logger:   zap.NewNop(),
		newKey:   uuid.NewString,
	}
	if a.maxBytes <= 0 {
		a.maxBytes = DefaultMaxBytes
	}
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = DefaultAllowedTypes
	}
	for _, t := range types {
		a.allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxBytes reports the configured upload limit.
func (a *Adapter) MaxBytes() int64 { return a.maxBytes }

// Store validates and persists an upload, returning its public URL. Failures
// are reported as domain.UploadError; nothing is stored on failure.
func (a *Adapter) Store(ctx context.Context, up Upload, md Metadata) (Stored, error) {
	if up.Body == nil {
		return Stored{}, domain.UploadError{Reason: domain.UploadUnsupported, Err: errors.New("empty upload")}
	}
	if up.Size > a.maxBytes {
		return Stored{}, a.tooLarge()
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, a.maxBytes+1))
	if err != nil {
		return Stored{}, domain.UploadError{Reason: domain.UploadStorage, Err: fmt.Errorf("read upload: %w", err)}
	}
	if int64(len(data)) > a.maxBytes {
		return Stored{}, a.tooLarge()
	}
	if len(data) == 0 {
		return Stored{}, domain.UploadError{Reason: domain.UploadUnsupported, Err: errors.New("empty upload")}
	}
	contentType := sniff(data)
	if _, ok := a.allowed[contentType]; !ok {
		return Stored{}, domain.UploadError{Reason: domain.UploadUnsupported, Err: fmt.Errorf("content type %s not allowed", contentType)}
	}

	key := a.keyFor(md.Kind, contentType)
	meta := map[string]string{"kind": string(md.Kind)}
	if name := path.Base(strings.TrimSpace(up.Filename)); name != "" && name != "." && name != "/" {
		meta["filename"] = name
	}
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType, Metadata: meta})
	if err != nil {
		return Stored{}, domain.UploadError{Reason: domain.UploadStorage, Err: err}
	}
	if info.URL == "" {
		a.Discard(ctx, key)
		return Stored{}, domain.UploadError{Reason: domain.UploadStorage, Err: errors.New("blob driver returned no public url")}
	}
	a.logger.Debug("media stored", zap.String("key", key), zap.String("content_type", contentType), zap.Int("bytes", len(data)))
	return Stored{URL: info.URL, Key: key, ContentType: contentType, Size: int64(len(data))}, nil
}

// Discard removes an upload whose record write failed. Errors are logged only.
func (a *Adapter) Discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := a.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		a.logger.Warn("discard upload failed", zap.String("key", key), zap.Error(err))
	}
}

// Open streams a stored object back, for drivers without a public endpoint.
func (a *Adapter) Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	info, rc, err := a.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
		return blob.Info{}, nil, domain.NotFoundError{Kind: "media", ID: key}
	}
	return info, rc, err
}

func (a *Adapter) tooLarge() error {
	return domain.UploadError{Reason: domain.UploadTooLarge, Err: fmt.Errorf("upload exceeds %d bytes", a.maxBytes)}
}

func (a *Adapter) keyFor(kind domain.Kind, contentType string) string {
	prefix := string(kind)
	if prefix == "" {
		prefix = "uploads"
	}
	return prefix + "/" + a.newKey() + extensions[contentType]
}

func sniff(data []byte) string {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
