// ddnsweaver keeps Cloudflare DNS records pointed at the host's public IPv4
// and IPv6 addresses. It runs a single sync pass or syncs on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/config"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/health"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/scheduler"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// errSyncFailed marks a one-shot pass in which at least one record failed.
// The failures themselves have already been logged.
var errSyncFailed = errors.New("one or more records failed to sync")

const usage = `Usage: ddnsweaver <command> [flags]

Commands:
  sync      Sync every configured record once and exit
  run       Sync records on the configured cron schedule
  verify    Check that every configured API token is active
  zones     List the zones visible to an API token
  version   Print version information

Run 'ddnsweaver <command> -h' for command flags.
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errSyncFailed) {
			slog.Error("fatal error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

// run dispatches to a subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "sync":
		return runSync(ctx, rest, stderr)
	case "run":
		return runScheduled(ctx, rest, stderr)
	case "verify":
		return runVerify(ctx, rest, stdout, stderr)
	case "zones":
		return runZones(ctx, rest, stdout, stderr)
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "ddnsweaver %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags are accepted by every command that reads the configuration file.
type commonFlags struct {
	configPath string
	debug      bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "configuration file (default $"+config.EnvConfig+" or "+config.DefaultPath+")")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	return fs, c
}

// loadConfig loads the configuration and installs the logger it describes.
func loadConfig(c *commonFlags, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	path := config.ResolvePath(c.configPath)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration from %s: %w", path, err)
	}

	level := cfg.LogLevel
	if c.debug {
		level = "debug"
	}
	logger := setupLogger(stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Debug("configuration loaded",
		slog.String("path", cfg.Path),
		slog.Int("groups", len(cfg.Groups)),
		slog.Int("records", cfg.TotalRecords()),
		slog.Duration("ip_cache_ttl", cfg.IPCacheTTL),
	)

	return cfg, logger, nil
}

// runSync performs one pass and fails if any record failed.
func runSync(ctx context.Context, args []string, stderr io.Writer) error {
	fs, flags := newFlagSet("sync", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(flags, stderr)
	if err != nil {
		return err
	}

	rec, err := reconciler.New(cfg, reconciler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("building records: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return syncOnce(ctx, rec, logger)
}

// passRunner runs one sync pass over every record.
type passRunner interface {
	RunOnce(ctx context.Context) *reconciler.PassResult
}

// syncOnce runs a pass and returns errSyncFailed when any record failed.
// RunOnce already logs the pass counts and every record failure.
func syncOnce(ctx context.Context, runner passRunner, logger *slog.Logger) error {
	if failed := runner.RunOnce(ctx).FailedRecords(); len(failed) > 0 {
		logger.Error("sync failed", slog.Any("failed_records", failed))
		return errSyncFailed
	}
	return nil
}

// runScheduled syncs on the configured schedule until SIGINT or SIGTERM.
func runScheduled(ctx context.Context, args []string, stderr io.Writer) error {
	fs, flags := newFlagSet("run", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(flags, stderr)
	if err != nil {
		return err
	}

	logger.Info("ddnsweaver starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("cron", cfg.Cron),
		slog.String("timezone", cfg.Location.String()),
	)

	rec, err := reconciler.New(cfg, reconciler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("building records: %w", err)
	}

	sched := scheduler.New(cfg.Schedule, scheduler.WithLogger(logger))
	for _, job := range rec.Jobs() {
		sched.Add(job)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var healthServer *health.Server
	if cfg.HealthPort > 0 {
		healthServer = health.New(cfg.HealthPort, health.WithLogger(logger))
		healthServer.RegisterProviders(rec.Providers())
		healthServer.RegisterDegradedChecker("records", func(context.Context) string {
			return health.FailingRecords(rec.FailingRecords())
		})
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("starting health server: %w", err)
		}
	}

	logger.Info("ddnsweaver initialized",
		slog.Int("records", cfg.TotalRecords()),
		slog.Int("providers", len(rec.Providers().All())),
		slog.Int("health_port", cfg.HealthPort),
	)

	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("ddnsweaver shutdown complete")
	return nil
}

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
