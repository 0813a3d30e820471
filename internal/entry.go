// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/orgstate/internal/api"
	"github.com/starford/orgstate/internal/generator"
	"github.com/starford/orgstate/internal/orgservice"
	"github.com/starford/orgstate/internal/sse"
	"github.com/starford/orgstate/internal/storage"
	"github.com/starford/orgstate/internal/watch"
)

var errConfigRequired = errors.New("config is required")

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// service opens the org root and builds the org service over it.
func (a *application) service(logger *slog.Logger) (*orgservice.Service, error) {
	cfg := a.config
	store, err := storage.NewFS(cfg.Org.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return orgservice.New(store, orgservice.Options{
		Scan:         cfg.ScanOptions(),
		InboxFolders: cfg.Inbox.Folders,
		Generate:     cfg.Generate.Options(),
	}, logger, orgservice.WithClock(a.now)), nil
}

// watchOptions watches the org tree but ignores generated artifacts.
func (a *application) watchOptions() watch.Options {
	cfg := a.config
	tagDir := path.Clean(cfg.Generate.TagDir)
	dashboard := path.Clean(cfg.Generate.DashboardPath)
	return watch.Options{
		Root:     cfg.Org.Root,
		Ext:      cfg.Org.Extension,
		Debounce: cfg.Watch.Debounce,
		SkipDirs: cfg.Org.ExcludeDirs,
		Ignore: func(rel string) bool {
			return rel == dashboard || strings.HasPrefix(rel, tagDir+"/")
		},
	}
}

// regenerate runs one generation pass and publishes its outcome.
func regenerate(ctx context.Context, svc *orgservice.Service, broker *sse.Broker, logger *slog.Logger) {
	report, err := svc.Generate(ctx)
	if err != nil {
		logger.Error("generate failed", slog.String("error", err.Error()))
		return
	}
	logReport(logger, report)
	if broker != nil && report.Changed() {
		broker.PublishRegenerated(sse.Regenerated{
			Written:  report.Written,
			Removed:  report.Removed,
			Failures: len(report.Failures),
		})
	}
}

func logReport(logger *slog.Logger, report *generator.Report) {
	logger.Info("artifacts generated",
		slog.Int("written", len(report.Written)),
		slog.Int("unchanged", len(report.Unchanged)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("failures", len(report.Failures)))
}

// runWatcher regenerates artifacts after every settled burst of changes.
func (a *application) runWatcher(ctx context.Context, svc *orgservice.Service, broker *sse.Broker, logger *slog.Logger) error {
	regenerate(ctx, svc, broker, logger)
	return watch.Watch(ctx, a.watchOptions(), logger, func(ctx context.Context, changed []string) {
		logger.Info("tree changed", slog.Int("paths", len(changed)))
		if broker != nil {
			broker.PublishTreeChange(changed)
		}
		regenerate(ctx, svc, broker, logger)
	})
}

// waitForSignal blocks until SIGINT/SIGTERM or ctx is done.
func waitForSignal(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

// Serve starts the HTTP state API with the event stream and keeps derived
// artifacts current while the tree changes.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("org_root", cfg.Org.Root),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := app.service(logger)
	if err != nil {
		return err
	}

	broker := sse.NewBroker(logger, sse.WithStateThrottle(cfg.Watch.EventThrottle))
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if info, err := os.Stat(cfg.Org.Root); err != nil || !info.IsDir() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"org root missing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Keep artifacts current and stream changes to SSE clients.
	g.Go(func() error {
		if err := app.runWatcher(gCtx, svc, broker, logger); err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		waitForSignal(gCtx, logger)

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once a shutdown was requested so the
// watcher stops with the server.
var errShutdown = errors.New("shutdown requested")

// Watch regenerates derived artifacts whenever the tree changes, until
// interrupted.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	svc, err := app.service(logger)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.runWatcher(gCtx, svc, nil, logger)
	})
	g.Go(func() error {
		waitForSignal(gCtx, logger)
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Watcher stopped")
	return nil
}
