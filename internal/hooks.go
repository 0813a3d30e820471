package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/hook"
	"github.com/starford/orgstate/internal/scanner"
)

// Hook commands keep stdout for the protocol and resolve every internal
// problem to a pass.

func (a *application) hookLogger() *slog.Logger {
	return newLogger(a.stderr, a.config.App.LogLevel)
}

// readInput decodes the hook request. Unusable input is logged and yields a
// zero Input, which every hook treats as a plain pass/orient request.
func (a *application) readInput(ctx context.Context, logger *slog.Logger) hook.Input {
	ctx, cancel := context.WithTimeout(ctx, a.config.Hook.StdinTimeout)
	defer cancel()
	in, err := hook.DecodeInput(ctx, a.stdin)
	if err != nil {
		logger.Debug("hook input ignored", slog.String("error", err.Error()))
	}
	return in
}

// aggregateTree scans the root and applies the default policies. A missing
// root yields apperr.ErrMissingRoot.
func (a *application) aggregateTree(ctx context.Context, logger *slog.Logger) (*aggregate.Result, error) {
	snap, err := scanner.Scan(ctx, a.config.ScanOptions(), logger)
	if err != nil {
		return nil, err
	}
	return aggregate.Aggregate(snap.Records, aggregate.Default(a.now(), a.config.Inbox.Folders)...), nil
}

// Orient prints the session-start orientation summary.
func Orient(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.hookLogger()

	in := app.readInput(ctx, logger)
	if in.Source == hook.SourceResume {
		return nil
	}

	res, err := app.aggregateTree(ctx, logger)
	if err != nil {
		if !errors.Is(err, apperr.ErrMissingRoot) {
			logger.Error("orientation skipped", slog.String("error", err.Error()))
		}
		return nil
	}

	text, ok := hook.Orient(ctx, in, hook.OrientOptions{
		Root:          cfg.Org.Root,
		ReminderLimit: cfg.Orientation.ReminderLimit,
		VoiceLines:    cfg.Orientation.VoiceLines,
		InboxFolders:  cfg.Inbox.Folders,
	}, res)
	if !ok {
		return nil
	}
	if _, err := fmt.Fprint(app.stdout, text); err != nil {
		logger.Error("write orientation", slog.String("error", err.Error()))
	}
	return nil
}

// Gate decides whether the session may stop and returns the process exit
// code for the configured protocol.
func Gate(ctx context.Context, opts ...Option) int {
	app, err := newApplication(opts)
	if err != nil {
		return 0
	}
	cfg := app.config
	logger := app.hookLogger()

	in := app.readInput(ctx, logger)
	gateOpts := cfg.Gate.Options(cfg.Org.Root)

	d := hook.Gate(ctx, in, gateOpts, hook.Findings{})
	if d.Block {
		res, err := app.aggregateTree(ctx, logger)
		switch {
		case errors.Is(err, apperr.ErrMissingRoot):
			d = hook.Pass
		case err != nil:
			logger.Warn("gate findings unavailable", slog.String("error", err.Error()))
		default:
			d = hook.Gate(ctx, in, gateOpts, hook.CollectFindings(cfg.Org.Root, res))
		}
	}

	code, err := hook.WriteDecision(app.stdout, app.stderr, d, hook.Protocol(cfg.Gate.Protocol))
	if err != nil {
		logger.Error("write gate decision", slog.String("error", err.Error()))
		return 0
	}
	return code
}
