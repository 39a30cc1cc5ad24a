// Package httpapi exposes the content service over HTTP with gorilla/mux.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"buildcore/internal/blob"
	"buildcore/internal/core"
	"buildcore/internal/dashboard"
	"buildcore/internal/media"
	"buildcore/pkg/domain"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service is the subset of core.Service served over HTTP.
type Service interface {
	Create(ctx context.Context, kind domain.Kind, fields core.Fields, image *media.Upload) (domain.Resource, error)
	Update(ctx context.Context, kind domain.Kind, id string, fields core.Fields, image *media.Upload) (domain.Resource, error)
	Delete(ctx context.Context, kind domain.Kind, id string) error
	List(ctx context.Context, kind domain.Kind, opts core.ListOptions) ([]domain.Resource, error)
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Resource, error)
	ListContactMessages(ctx context.Context) ([]domain.ContactMessage, error)
	SubmitContactMessage(ctx context.Context, msg domain.ContactMessage) (domain.ContactMessage, core.Delivery, error)
}

// MediaStore stores standalone uploads and streams stored objects back.
type MediaStore interface {
	Store(ctx context.Context, up media.Upload, md media.Metadata) (media.Stored, error)
	Open(ctx context.Context, key string) (blob.Info, io.ReadCloser, error)
	MaxBytes() int64
}

// Collector produces the admin dashboard summary.
type Collector interface {
	Collect(ctx context.Context) (dashboard.Summary, error)
}

// Handler routes HTTP requests to the content service.
type Handler struct {
	svc        Service
	media      MediaStore
	dashboard  Collector
	auth       *TokenAuthorizer
	limiter    *ipLimiter
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	router     *mux.Router
	maxForm    int64
	maxContact int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAdminToken sets the bearer token that gates admin routes. Without it
// every admin request is refused.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.auth = NewTokenAuthorizer(token) }
}

// WithMedia enables standalone uploads and /media downloads.
func WithMedia(m MediaStore) Option { return func(h *Handler) { h.media = m } }

// WithDashboard enables GET /dashboard.
func WithDashboard(c Collector) Option { return func(h *Handler) { h.dashboard = c } }

// WithMetrics serves g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option { return func(h *Handler) { h.gatherer = g } }

// WithContactRateLimit limits contact submissions per client IP. A
// non-positive perMinute disables the limit.
func WithContactRateLimit(perMinute float64, burst int) Option {
	return func(h *Handler) { h.limiter = newIPLimiter(perMinute, burst, time.Now) }
}

// NewHandler builds the router for svc.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:        svc,
		auth:       NewTokenAuthorizer(""),
		logger:     zap.NewNop(),
		maxForm:    media.DefaultMaxBytes,
		maxContact: 64 << 10,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.media != nil {
		h.maxForm = h.media.MaxBytes()
	}
	h.router = h.routes()
	return h
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverer(h.logger), requestLogger(h.logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/resources/{kind}", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/resources/{kind}/{id}", h.handleGet).Methods(http.MethodGet)
	r.Handle("/resources/{kind}", h.admin(h.handleCreate)).Methods(http.MethodPost)
	r.Handle("/resources/{kind}/{id}", h.admin(h.handleUpdate)).Methods(http.MethodPut)
	r.Handle("/resources/{kind}/{id}", h.admin(h.handleDelete)).Methods(http.MethodDelete)

	r.Handle("/contact", h.limit(h.handleSubmitContact)).Methods(http.MethodPost)
	r.Handle("/contact", h.admin(h.handleListContact)).Methods(http.MethodGet)

	r.Handle("/media", h.admin(h.handleUpload)).Methods(http.MethodPost)
	r.HandleFunc("/media/{key:.+}", h.handleMedia).Methods(http.MethodGet)

	r.Handle("/dashboard", h.admin(h.handleDashboard)).Methods(http.MethodGet)
	return r
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	return h.auth.Middleware(fn)
}

func (h *Handler) limit(fn http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return fn
	}
	return h.limiter.Middleware(fn)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if h.dashboard == nil {
		writeError(w, http.StatusNotFound, "dashboard not configured")
		return
	}
	summary, err := h.dashboard.Collect(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": summary.Counts()})
}
