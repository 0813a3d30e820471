package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/generator"
	"github.com/starford/orgstate/internal/mcpserver"
	"github.com/starford/orgstate/internal/storage"
)

// Target selects which artifacts Generate writes.
type Target string

const (
	TargetAll       Target = "all"
	TargetTags      Target = "tags"
	TargetDashboard Target = "dashboard"
)

// Generate regenerates derived artifacts and prints a one-line summary. A
// missing root is reported and treated as success.
func Generate(ctx context.Context, target Target, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.stderr, cfg.App.LogLevel)

	res, err := app.aggregateTree(ctx, logger)
	if errors.Is(err, apperr.ErrMissingRoot) {
		logger.Warn("org root missing, nothing generated", slog.String("root", cfg.Org.Root))
		return nil
	}
	if err != nil {
		return err
	}
	store, err := storage.NewFS(cfg.Org.Root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	g := generator.New(store, cfg.Generate.Options(), logger, generator.WithClock(app.now))
	var report *generator.Report
	switch target {
	case TargetTags:
		report, err = g.TagPages(ctx, res)
	case TargetDashboard:
		report, err = g.Dashboard(ctx, res)
	default:
		report, err = g.All(ctx, res)
	}
	if err != nil {
		return err
	}
	logReport(logger, report)

	_, err = fmt.Fprintf(app.stdout, "%s: %d written, %d unchanged, %d removed, %d failed\n",
		target, len(report.Written), len(report.Unchanged), len(report.Removed), len(report.Failures))
	return err
}

// Scan prints the aggregated state as JSON.
func Scan(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.stderr, app.config.App.LogLevel)

	svc, err := app.service(logger)
	if err != nil {
		return err
	}
	st, err := svc.State(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(app.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// ServeMCP runs the MCP server on stdin/stdout. Logs go to stderr.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	svc, err := app.service(logger)
	if err != nil {
		return err
	}
	logger.Info("MCP server starting", slog.String("org_root", app.config.Org.Root))
	return mcpserver.New(svc, app.version).ServeStdio()
}
