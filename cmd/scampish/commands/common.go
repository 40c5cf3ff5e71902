// Package commands implements the scampish command line.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/scampish/internal/build"
	"git.home.luguber.info/inful/scampish/internal/config"
	"git.home.luguber.info/inful/scampish/internal/eventstore"
	"git.home.luguber.info/inful/scampish/internal/notify"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger  *slog.Logger
	Context context.Context
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"${config_file}"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build and publish the site once"`
	Daemon  DaemonCmd  `cmd:"" help:"Keep the site published, rebuilding on an interval or on change"`
	History HistoryCmd `cmd:"" help:"Show recorded runs from the ledger"`
}

// AfterApply runs after flag parsing; sets up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the run configuration and applies its logging settings.
// --verbose keeps debug logging regardless of the configured level.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = newLogger(cfg.Logging, root.Verbose)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openLedger opens the configured run ledger. It returns a nil Store when
// no ledger path is configured.
func openLedger(cfg *config.Config) (eventstore.Store, func(), error) {
	if cfg.Ledger.Path == "" {
		return nil, func() {}, nil
	}
	ledger, err := eventstore.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return nil, nil, err
	}
	return ledger, func() {
		if err := ledger.Close(); err != nil {
			slog.Warn("Failed to close ledger", "error", err)
		}
	}, nil
}

// serviceOptions opens the optional ledger and notifier. The returned close
// func releases both.
func serviceOptions(cfg *config.Config, logger *slog.Logger) ([]build.ServiceOption, eventstore.Store, func(), error) {
	opts := []build.ServiceOption{build.WithLogger(logger)}

	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if ledger != nil {
		opts = append(opts, build.WithLedger(ledger))
	}

	if !cfg.Notify.Enabled() {
		return opts, ledger, closeLedger, nil
	}
	notifier, closeNotifier, err := notify.Connect(cfg.Notify, logger)
	if err != nil {
		closeLedger()
		return nil, nil, nil, err
	}
	opts = append(opts, build.WithNotifier(notifier))
	return opts, ledger, func() {
		closeNotifier()
		closeLedger()
	}, nil
}
