// Package commands implements the kipple CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/config"
	"github.com/nissy/kipple-sub002/internal/history"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"kipple.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon DaemonCmd `cmd:"" help:"Run the capture and history daemon"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
	List   ListCmd   `cmd:"" help:"List history entries in display order"`
	Add    AddCmd    `cmd:"" help:"Add an entry from arguments or stdin"`
	Pin    PinCmd    `cmd:"" help:"Pin an entry so it survives capacity and retention"`
	Unpin  UnpinCmd  `cmd:"" help:"Unpin an entry"`
	Delete DeleteCmd `cmd:"" help:"Delete an entry by id"`
	Clear  ClearCmd  `cmd:"" help:"Remove entries from the history"`
	Stats  StatsCmd  `cmd:"" help:"Show history counts and backend info"`
}

// AfterApply runs after flag parsing; set up logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// openStore loads configuration and opens the history store for a one-shot
// command. The returned closer must run before the process exits.
func openStore(ctx context.Context, configPath string) (*history.Store, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	adapter, err := backend.FromDSN(cfg.Backend.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create backend: %w", err)
	}
	store := history.New(adapter, history.Options{
		Watermarks: history.Watermarks{
			MaxHistoryItems: cfg.History.EffectiveMaxItems(),
			MaxPinnedItems:  cfg.History.EffectiveMaxPinned(),
			Retention:       cfg.History.Retention(),
		},
		Logger: slog.Default(),
		Retry:  cfg.Backend.Retry.Policy(),
	})
	if err := store.Open(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("open history: %w", err)
	}
	closer := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing history store failed", "error", err)
		}
	}
	return store, cfg, closer, nil
}

// shortID renders the id prefix shown in list output; full ids stay the only
// accepted input for mutations.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
