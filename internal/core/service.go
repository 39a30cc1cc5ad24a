// Package core implements the resource write and read paths over a
// domain.PersistentStore and the media adapter.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildcore/internal/media"
	"buildcore/internal/notify"
	"buildcore/pkg/catalog"
	"buildcore/pkg/domain"

	"go.uber.org/zap"
)

// MediaStore is the upload contract used by the write path.
type MediaStore interface {
	Store(ctx context.Context, up media.Upload, md media.Metadata) (media.Stored, error)
	Discard(ctx context.Context, key string)
}

// ListOptions shapes a list read. The zero value lists every record in
// store order.
type ListOptions struct {
	Recent bool // newest first
	Limit  int  // <= 0 means unlimited
}

// Delivery reports the outcome of the notification that follows an accepted
// contact message.
type Delivery struct {
	Notified bool
	Err      error
}

// Service exposes the transactional write and read operations for site content.
type Service struct {
	store    PersistentStore
	media    MediaStore
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  MetricsRecorder
	tracer   Tracer
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMedia sets the media store used for image uploads.
func WithMedia(m MediaStore) ServiceOption { return func(s *Service) { s.media = m } }

// WithNotifier sets the contact notifier.
func WithNotifier(n notify.Notifier) ServiceOption { return func(s *Service) { s.notifier = n } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	return err
}

func requireResourceKind(kind domain.Kind) error {
	if kind.IsResource() {
		return nil
	}
	return domain.ValidationError{Kind: kind, Invalid: map[string]string{"kind": "is not a managed resource"}}
}

func (s *Service) upload(ctx context.Context, kind domain.Kind, up *media.Upload) (*media.Stored, error) {
	if up == nil {
		return nil, nil
	}
	if s.media == nil {
		return nil, domain.UploadError{Reason: domain.UploadStorage, Err: errors.New("media storage not configured")}
	}
	stored, err := s.media.Store(ctx, *up, media.Metadata{Kind: kind})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Service) discard(ctx context.Context, stored *media.Stored) {
	if stored != nil && s.media != nil {
		s.media.Discard(ctx, stored.Key)
	}
}

// Create validates fields, uploads the optional image and persists the new
// record. A validation or upload failure writes nothing; a persistence
// failure after upload discards the uploaded object.
func (s *Service) Create(ctx context.Context, kind domain.Kind, fields Fields, image *media.Upload) (domain.Resource, error) {
	var created domain.Resource
	err := s.run(ctx, "create_"+string(kind), func(ctx context.Context) error {
		if err := requireResourceKind(kind); err != nil {
			return err
		}
		var draft domain.Resource
		invalid := applyFields(&draft, NormalizeFields(fields))
		if verr := validateResource(kind, draft, invalid); !verr.Empty() {
			return verr
		}
		stored, err := s.upload(ctx, kind, image)
		if err != nil {
			return err
		}
		if stored != nil {
			url := stored.URL
			draft.Image = &url
		}
		err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateResource(kind, draft)
			return err
		})
		if err != nil {
			s.discard(ctx, stored)
			return fmt.Errorf("persist %s: %w", kind, err)
		}
		s.logger.Info("resource created", zap.String("kind", string(kind)), zap.String("id", created.ID), zap.Bool("image", stored != nil))
		return nil
	})
	return created, err
}

// Update merges the supplied fields over the existing record and optionally
// replaces its image. An unknown id fails before any upload; an upload
// failure leaves the record untouched.
func (s *Service) Update(ctx context.Context, kind domain.Kind, id string, fields Fields, image *media.Upload) (domain.Resource, error) {
	var updated domain.Resource
	err := s.run(ctx, "update_"+string(kind), func(ctx context.Context) error {
		if err := requireResourceKind(kind); err != nil {
			return err
		}
		normalized := NormalizeFields(fields)
		existing, err := s.find(ctx, kind, id)
		if err != nil {
			return err
		}
		merged := existing.Clone()
		invalid := applyFields(&merged, normalized)
		if verr := validateResource(kind, merged, invalid); !verr.Empty() {
			return verr
		}
		stored, err := s.upload(ctx, kind, image)
		if err != nil {
			return err
		}
		err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateResource(kind, id, func(r *domain.Resource) error {
				applyFields(r, normalized)
				if verr := validateResource(kind, *r, nil); !verr.Empty() {
					return verr
				}
				if stored != nil {
					url := stored.URL
					r.Image = &url
				}
				return nil
			})
			return err
		})
		if err != nil {
			s.discard(ctx, stored)
			var nf domain.NotFoundError
			var verr domain.ValidationError
			if errors.As(err, &nf) || errors.As(err, &verr) {
				return err
			}
			return fmt.Errorf("persist %s %s: %w", kind, id, err)
		}
		s.logger.Info("resource updated", zap.String("kind", string(kind)), zap.String("id", id), zap.Bool("image", stored != nil))
		return nil
	})
	return updated, err
}

// Delete removes a record. Its stored image is kept. Deleting an unknown id
// reports domain.NotFoundError.
func (s *Service) Delete(ctx context.Context, kind domain.Kind, id string) error {
	return s.run(ctx, "delete_"+string(kind), func(ctx context.Context) error {
		if err := requireResourceKind(kind); err != nil {
			return err
		}
		if err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteResource(kind, id)
		}); err != nil {
			return err
		}
		s.logger.Info("resource deleted", zap.String("kind", string(kind)), zap.String("id", id))
		return nil
	})
}

// List returns the records of kind. The result is never nil.
func (s *Service) List(ctx context.Context, kind domain.Kind, opts ListOptions) ([]domain.Resource, error) {
	var out []domain.Resource
	err := s.run(ctx, "list_"+string(kind), func(ctx context.Context) error {
		if err := requireResourceKind(kind); err != nil {
			return err
		}
		return s.store.View(ctx, func(v TransactionView) error {
			out = v.ListResources(kind)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if opts.Recent {
		out = catalog.SortByRecency(out)
	}
	out = catalog.Head(out, opts.Limit)
	return out, nil
}

// Get returns a single record or domain.NotFoundError.
func (s *Service) Get(ctx context.Context, kind domain.Kind, id string) (domain.Resource, error) {
	var out domain.Resource
	err := s.run(ctx, "get_"+string(kind), func(ctx context.Context) error {
		if err := requireResourceKind(kind); err != nil {
			return err
		}
		var err error
		out, err = s.find(ctx, kind, id)
		return err
	})
	return out, err
}

func (s *Service) find(ctx context.Context, kind domain.Kind, id string) (domain.Resource, error) {
	var (
		out   domain.Resource
		found bool
	)
	if err := s.store.View(ctx, func(v TransactionView) error {
		out, found = v.FindResource(kind, id)
		return nil
	}); err != nil {
		return domain.Resource{}, err
	}
	if !found {
		return domain.Resource{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	return out, nil
}

// ListContactMessages returns every stored contact message, newest first.
func (s *Service) ListContactMessages(ctx context.Context) ([]domain.ContactMessage, error) {
	var out []domain.ContactMessage
	err := s.run(ctx, "list_contact", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			msgs := v.ListContactMessages()
			out = make([]domain.ContactMessage, 0, len(msgs))
			for i := len(msgs) - 1; i >= 0; i-- {
				out = append(out, msgs[i])
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitContactMessage validates and stores a public contact message, then
// notifies the admin. A notification failure does not undo the stored
// message; it is reported through Delivery.
func (s *Service) SubmitContactMessage(ctx context.Context, msg domain.ContactMessage) (domain.ContactMessage, Delivery, error) {
	var (
		created  domain.ContactMessage
		delivery Delivery
	)
	err := s.run(ctx, "submit_contact", func(ctx context.Context) error {
		msg.ID = ""
		if verr := validateContact(&msg); !verr.Empty() {
			return verr
		}
		if err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateContactMessage(msg)
			return err
		}); err != nil {
			return fmt.Errorf("persist contact message: %w", err)
		}
		if s.notifier == nil {
			return nil
		}
		if err := s.notifier.Send(ctx, notify.ContactNotification(created)); err != nil {
			s.logger.Warn("contact notification failed", zap.String("id", created.ID), zap.Error(err))
			delivery.Err = err
			return nil
		}
		delivery.Notified = true
		return nil
	})
	return created, delivery, err
}

// Count returns the number of stored records of kind; KindContact counts
// contact messages.
func (s *Service) Count(ctx context.Context, kind domain.Kind) (int, error) {
	var n int
	err := s.run(ctx, "count_"+string(kind), func(ctx context.Context) error {
		if kind != domain.KindContact {
			if err := requireResourceKind(kind); err != nil {
				return err
			}
		}
		return s.store.View(ctx, func(v TransactionView) error {
			if kind == domain.KindContact {
				n = len(v.ListContactMessages())
				return nil
			}
			n = len(v.ListResources(kind))
			return nil
		})
	})
	return n, err
}
