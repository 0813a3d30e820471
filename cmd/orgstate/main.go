package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/orgstate/internal"
	pkgconfig "github.com/starford/orgstate/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	root, err := expandHome(cfg.Org.Root)
	if err != nil {
		return nil, err
	}
	cfg.Org.Root = root

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve org root: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// action adapts a runner to a cli action with the loaded configuration.
func action(run func(ctx context.Context, opts ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(ctx, opts...)
	}
}

func generate(target internal.Target) cli.ActionFunc {
	return action(func(ctx context.Context, opts ...internal.Option) error {
		return internal.Generate(ctx, target, opts...)
	})
}

func gate(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		// A broken config never blocks the host session.
		slog.Error("gate skipped", slog.String("error", err.Error()))
		return nil
	}
	if code := internal.Gate(ctx, opts...); code != 0 {
		os.Exit(code)
	}
	return nil
}

func orient(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadConfig(cmd)
	if err != nil {
		slog.Error("orientation skipped", slog.String("error", err.Error()))
		return nil
	}
	return internal.Orient(ctx, opts...)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cmd := &cli.Command{
		Name:    "orgstate",
		Usage:   "Aggregates a markdown org tree into state, hooks, derived artifacts and an MCP server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("ORGSTATE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "orient",
				Usage:  "Session-start hook: print the orientation summary",
				Action: orient,
			},
			{
				Name:   "gate",
				Usage:  "Stop hook: block until maintenance has been considered",
				Action: gate,
			},
			{
				Name:   "tags",
				Usage:  "Regenerate tag index pages",
				Action: generate(internal.TargetTags),
			},
			{
				Name:   "dashboard",
				Usage:  "Regenerate the dashboard",
				Action: generate(internal.TargetDashboard),
			},
			{
				Name:   "generate",
				Usage:  "Regenerate all derived artifacts",
				Action: generate(internal.TargetAll),
			},
			{
				Name:   "scan",
				Usage:  "Print the aggregated state as JSON",
				Action: action(internal.Scan),
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and regenerate artifacts on change",
				Action: action(internal.Serve),
			},
			{
				Name:   "watch",
				Usage:  "Regenerate artifacts whenever the tree changes",
				Action: action(internal.Watch),
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: action(internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
