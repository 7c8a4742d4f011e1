package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/starpoller/internal/app"
	"github.com/florianilch/starpoller/internal/credstore"
	"github.com/florianilch/starpoller/internal/observability"
	"github.com/florianilch/starpoller/internal/poller"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "starpoller",
		Usage: "Keep a page starred (or unstarred) with an authenticated polling loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to TOML config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "path to a .env file with STARPOLLER_* variables",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "log in and poll until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "OpenTelemetry log exporter (none|stdout|otlphttp|otlpgrpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "service base URL",
				Value: app.DefaultConfigUpstreamBaseURL,
			},
			&cli.DurationFlag{
				Name:  "upstream--timeout",
				Usage: "timeout for each request",
				Value: app.DefaultConfigUpstreamTimeout,
			},
			&cli.StringFlag{
				Name:    "auth--username",
				Aliases: []string{"u"},
				Usage:   "account user name (prompted if missing)",
			},
			&cli.StringFlag{
				Name:  "auth--password-source",
				Usage: "where to read the password (static|env|file|keyring|prompt)",
			},
			&cli.StringFlag{
				Name:  "auth--password-file",
				Usage: "password file, must be mode 0600",
			},
			&cli.StringFlag{
				Name:  "auth--password-env-key",
				Usage: "environment variable holding the password",
			},
			&cli.StringFlag{
				Name:  "auth--keyring-user",
				Usage: "keyring entry user (defaults to the user name)",
			},
			&cli.StringFlag{
				Name:    "poll--page-id",
				Aliases: []string{"p"},
				Usage:   "id of the page to star (prompted if missing)",
			},
			&cli.StringFlag{
				Name:  "poll--interval",
				Usage: "wait between confirmed attempts, in milliseconds",
				Value: fmt.Sprint(poller.DefaultInterval.Milliseconds()),
			},
			&cli.StringFlag{
				Name:  "poll--mode",
				Usage: "0 or add, 1 or remove",
				Value: poller.ActionAdd.String(),
			},
			&cli.IntFlag{
				Name:  "poll--max-consecutive-refreshes",
				Usage: "give up after this many refreshes without a confirmed attempt (0: never)",
				Value: app.DefaultConfigMaxConsecutiveRefreshes,
			},
			&cli.IntFlag{
				Name:  "refresh--max-attempts",
				Usage: "attempts per token refresh on network failure",
				Value: app.DefaultConfigRefreshMaxAttempts,
			},
			&cli.BoolFlag{
				Name:  "status--enabled",
				Usage: "serve /healthz, /status and /metrics",
			},
			&cli.StringFlag{
				Name:  "status--host",
				Usage: "status server host",
				Value: app.DefaultConfigStatusHost,
			},
			&cli.IntFlag{
				Name:  "status--port",
				Usage: "status server port",
				Value: app.DefaultConfigStatusPort,
			},
			&cli.DurationFlag{
				Name:  "shutdown--timeout",
				Usage: "graceful shutdown timeout",
				Value: app.DefaultConfigShutdownTimeout,
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	terminal := credstore.NewTerminal(os.Stdin, os.Stderr)

	environFunc, err := environWithDotenv(cmd.String("env-file"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, environFunc, terminal)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdownLogging, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.LogExporter)
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownLogging(flushCtx)
	}()
	slog.SetDefault(slog.Default().With("run_id", uuid.NewString()))

	application, err := app.New(cfg, app.WithTerminal(terminal))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
