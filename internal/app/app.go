// Package app wires the bridge's fx lifecycle: parsing CLI flags and
// running the daemon until the process receives a shutdown signal.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"dbusmqtt/internal/app/cli"
	"dbusmqtt/internal/app/diagnostics"
	"dbusmqtt/internal/config/logger"
)

// App owns the cobra command tree and the top-level signal handling that
// starts and stops it.
type App struct {
	cli       *cli.CLI
	blocklist *diagnostics.BlocklistWatcher
	log       logger.Logger

	cancel context.CancelFunc
}

// NewApp creates an App backed by the given command tree and optional
// blocklist watcher (nil when no override file is configured).
func NewApp(c *cli.CLI, blocklist *diagnostics.BlocklistWatcher, log logger.Logger) *App {
	return &App{cli: c, blocklist: blocklist, log: log}
}

// Run parses os.Args and executes the bridge until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	if err := a.cli.Execute(ctx, os.Args[1:], pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)); err != nil {
		a.log.Error().Err(err).Msg("bridge exited with an error")
	}
}

// Register ties App's lifecycle to fx: OnStart installs signal handling
// and launches the bridge in the background, OnStop cancels its context.
func Register(lifecycle fx.Lifecycle, a *App) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if a.blocklist != nil {
				if err := a.blocklist.Start(ctx); err != nil {
					a.log.Warn().Err(err).Msg("failed to start blocklist override watcher")
				}
			}

			go a.handleSignals(ctx)
			go a.Run(ctx)

			return nil
		},
		OnStop: func(context.Context) error {
			a.cancel()

			return nil
		},
	})
}

// handleSignals dumps every goroutine's stack on SIGUSR1. SIGINT/SIGTERM
// are left to fx's own signal relay, which calls this app's OnStop hook
// (cancelling ctx and letting the bridge drain) before the process exits.
func (a *App) handleSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			diagnostics.DumpStacks(a.log)
		}
	}
}
