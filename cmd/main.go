package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"dbusmqtt/internal/app"
	"dbusmqtt/internal/app/cli"
	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
)

// main is the entry point for the application
func main() {
	runApp()
}

// runApp contains the main application logic
func runApp() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fx.New(createApp(cfg)).Run()
}

// loadConfig binds the CLI's flags against os.Args and unmarshals the
// result, wrapping config.Load for easier testing.
func loadConfig() (*config.Config, error) {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cli.BindFlags(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	return config.Load(flags)
}

// createApp builds the fx options for the given config.
func createApp(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.WithLogger(createFxLogger(cfg)),
		fx.Supply(cfg),
		fx.Provide(func() logger.Logger {
			return logger.NewLoggerWithOutput(cfg, nil)
		}),
		app.Module,
	)
}

// createFxLogger returns an FX logger based on the config
func createFxLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Logging.Level == logger.DebugLevel {
			return &fxevent.ConsoleLogger{W: os.Stdout}
		}

		return fxevent.NopLogger
	}
}
