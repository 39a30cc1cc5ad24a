// Package app wires configuration, storage, media, notifications and the HTTP
// API into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"buildcore/internal/adapters/httpapi"
	"buildcore/internal/blob"
	"buildcore/internal/config"
	"buildcore/internal/core"
	"buildcore/internal/dashboard"
	"buildcore/internal/media"
	"buildcore/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// App is a fully wired buildcore server.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *core.Service
	handler  http.Handler
	registry *prometheus.Registry
	closers  []func() error
}

// New opens every collaborator described by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	store, closeStore, err := core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	blobs, err := blob.Open(ctx, blob.Config{
		Driver:        cfg.Blob.Driver,
		FSRoot:        cfg.Blob.FSRoot,
		PublicBaseURL: cfg.Blob.PublicBaseURL,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3.Bucket,
			Region:          cfg.Blob.S3.Region,
			Endpoint:        cfg.Blob.S3.Endpoint,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
			PathStyle:       cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	adapter := media.NewAdapter(blobs, media.Config{
		MaxBytes:     cfg.Media.MaxBytes,
		AllowedTypes: cfg.Media.AllowedTypes,
	}, media.WithLogger(logger.Named("media")))

	notifier, err := newNotifier(cfg.Mail, logger.Named("notify"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.service = core.NewService(store,
		core.WithMedia(adapter),
		core.WithNotifier(notifier),
		core.WithLogger(logger.Named("core")),
		core.WithMetricsRecorder(metrics),
	)
	a.handler = httpapi.NewHandler(a.service,
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithAdminToken(cfg.HTTP.AdminToken),
		httpapi.WithMedia(adapter),
		httpapi.WithDashboard(dashboard.NewAggregator(a.service, dashboard.WithLogger(logger.Named("dashboard")))),
		httpapi.WithMetrics(a.registry),
		httpapi.WithContactRateLimit(cfg.HTTP.ContactPerMinute, cfg.HTTP.ContactBurst),
	)
	if cfg.HTTP.AdminToken == "" {
		logger.Warn("no admin token configured; admin routes are disabled")
	}
	logger.Info("application wired",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", string(blobs.Driver())),
		zap.Bool("smtp", cfg.Mail.Host != ""),
	)
	return a, nil
}

func newNotifier(mail config.Mail, logger *zap.Logger) (notify.Notifier, error) {
	if mail.Host == "" {
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:       mail.Host,
		Port:       mail.Port,
		Username:   mail.User,
		Password:   mail.Password,
		From:       mail.From,
		To:         mail.To,
		MaxRetries: mail.Retries,
	}, notify.WithSMTPLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	return n, nil
}

// Service returns the wired content service.
func (a *App) Service() *core.Service { return a.service }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.handler }

// Run listens on the configured address until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Addr, err)
	}
	return a.Serve(ctx, l)
}

// Serve answers requests on l and shuts down gracefully once ctx is done.
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           a.handler,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		ErrorLog:          zap.NewStdLog(a.logger.Named("http")),
	}
	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", l.Addr().String()))
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down http server")
		timeout := a.cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-serverErr
	case err := <-serverErr:
		return err
	}
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
