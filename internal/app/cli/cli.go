// Package cli builds the dbusmqtt cobra command tree: the root command runs
// the bridge itself, and a "topics" subcommand gives an operator read-only
// visibility into what's currently mirrored, grounded on the teacher's
// cobra-based command builder in commands.go.
package cli

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dbusmqtt/internal/app/colors"
	"dbusmqtt/internal/app/status"
	"dbusmqtt/internal/config"
)

// Bridge is the long-running process a CLI invocation starts; satisfied by
// internal/bridge.Bridge. Kept as a narrow interface here so this package
// never imports the bridge's wiring.
type Bridge interface {
	Run(ctx context.Context) error
}

// CLI builds and executes the cobra command tree.
type CLI struct {
	bridge Bridge
}

// New creates a CLI backed by the given Bridge.
func New(bridge Bridge) *CLI {
	return &CLI{bridge: bridge}
}

// Execute parses args against the root command and runs whichever
// subcommand matched. The root command's flags are added to flags so
// config.Load can read them.
func (c *CLI) Execute(ctx context.Context, args []string, flags *pflag.FlagSet) error {
	root := c.buildRootCommand(ctx, flags)
	root.AddCommand(buildTopicsCommand())

	if args == nil {
		args = []string{}
	}

	root.SetArgs(args)

	return root.Execute()
}

func (c *CLI) buildRootCommand(ctx context.Context, flags *pflag.FlagSet) *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "Mirrors the local object bus onto the broker",
		Long:          config.AppName + " bridges a D-Bus-style object bus and an MQTT-style broker, keeping a typed property tree in sync in both directions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.bridge.Run(ctx)
		},
	}

	BindFlags(cmd.Flags())
	flags.AddFlagSet(cmd.Flags())

	cmd.Version = config.Version

	return cmd
}

// BindFlags registers every flag config.Load expects to find bound. It is
// exported so the entry point can bind and parse the same flag set once,
// before the fx container (and therefore the Config every component
// depends on) is built.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("system-id", "", "System id this bridge publishes under (required)")
	flags.String("mqtt-host", "localhost", "Broker host")
	flags.Int("mqtt-port", 1883, "Broker port")
	flags.String("mqtt-user", "", "Broker username")
	flags.String("mqtt-password", "", "Broker password")
	flags.String("ca-cert", "", "Path to a CA certificate for a TLS broker connection")
	flags.String("dbus-address", "", "Object bus address (empty uses the session bus default)")
	flags.Int("keep-alive", config.DefaultKeepAlive, "Subscription keep-alive TTL in seconds; <=0 disables expiry")
	flags.Bool("init-broker", false, "Initialize broker-side retained state on startup")
	flags.String("blocklist-file", "", "Optional hot-reloaded file of extra blocked (service-type, path) pairs")
	flags.String("status-socket", "", "Unix socket path the 'topics' subcommand queries; empty disables it")
	flags.Bool("debug", false, "Enable debug logging")
}

// buildTopicsCommand creates the "topics" diagnostic command tree.
func buildTopicsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Inspect topics currently mirrored by a running bridge",
	}

	cmd.AddCommand(buildTopicsLsCommand())

	return cmd
}

func buildTopicsLsCommand() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "ls <glob>",
		Short: "List currently-published topics matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "**"
			if len(args) > 0 {
				pattern = args[0]
			}

			return runTopicsLs(socketPath, pattern)
		},
	}

	cmd.Flags().StringVar(&socketPath, "status-socket", "", "Unix socket path the running bridge listens on")

	return cmd
}

func runTopicsLs(socketPath, pattern string) error {
	if socketPath == "" {
		return fmt.Errorf("--status-socket is required")
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	entries, err := status.Query(socketPath)
	if err != nil {
		return fmt.Errorf("failed to query bridge status socket: %w", err)
	}

	for _, e := range entries {
		if g.Match(e.Topic) {
			fmt.Printf("%s %v\n", colors.Primary(e.Topic), e.Value)
		}
	}

	return nil
}
