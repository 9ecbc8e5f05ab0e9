package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.MQTTHost)
	assert.Equal(t, 1883, cfg.MQTTPort)
	assert.Equal(t, DefaultKeepAlive, cfg.KeepAlive)
	assert.Equal(t, LogLevel, cfg.Logging.Level)
	assert.Equal(t, LogFormat, cfg.Logging.Format)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("system-id", "d0ff500097c0", "")
	flags.String("mqtt-host", "localhost", "")
	flags.Int("mqtt-port", 1883, "")
	flags.String("mqtt-user", "", "")
	flags.String("mqtt-password", "", "")
	flags.String("ca-cert", "", "")
	flags.String("dbus-address", "", "")
	flags.Int("keep-alive", DefaultKeepAlive, "")
	flags.Bool("init-broker", false, "")
	flags.String("blocklist-file", "", "")
	flags.Bool("debug", false, "")

	return flags
}

func Test_Load(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(flags *pflag.FlagSet)
		expectError bool
	}{
		{
			name: "defaults are valid",
		},
		{
			name: "custom host and port",
			setup: func(flags *pflag.FlagSet) {
				require.NoError(t, flags.Set("mqtt-host", "broker.local"))
				require.NoError(t, flags.Set("mqtt-port", "8883"))
			},
		},
		{
			name: "debug flag lowers log level",
			setup: func(flags *pflag.FlagSet) {
				require.NoError(t, flags.Set("debug", "true"))
			},
		},
		{
			name: "empty host is invalid",
			setup: func(flags *pflag.FlagSet) {
				require.NoError(t, flags.Set("mqtt-host", ""))
			},
			expectError: true,
		},
		{
			name: "out of range port is invalid",
			setup: func(flags *pflag.FlagSet) {
				require.NoError(t, flags.Set("mqtt-port", "70000"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlagSet()
			if tt.setup != nil {
				tt.setup(flags)
			}

			cfg, err := Load(flags)
			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func Test_KeepAliveEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.KeepAliveEnabled())

	cfg.KeepAlive = 0
	assert.False(t, cfg.KeepAliveEnabled())

	cfg.KeepAlive = -1
	assert.False(t, cfg.KeepAliveEnabled())
}
