package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dbusmqtt/internal/app/errors"
)

// Config represents the bridge's runtime configuration. Unlike the file-backed
// configuration of a service supervisor, this daemon is a single long-running
// process with no persisted topology: everything here comes from flags and
// BRIDGE_-prefixed environment variables, bound through viper the same way the
// rest of the ecosystem binds a cobra flag set.
type Config struct {
	SystemID string `mapstructure:"system-id"`

	MQTTHost     string `mapstructure:"mqtt-host"`
	MQTTPort     int    `mapstructure:"mqtt-port"`
	MQTTUser     string `mapstructure:"mqtt-user"`
	MQTTPassword string `mapstructure:"mqtt-password"`
	CACert       string `mapstructure:"ca-cert"`

	DBusAddress string `mapstructure:"dbus-address"`

	KeepAlive     int    `mapstructure:"keep-alive"`
	InitBroker    bool   `mapstructure:"init-broker"`
	BlocklistFile string `mapstructure:"blocklist-file"`
	StatusSocket  string `mapstructure:"status-socket"`

	Logging struct {
		Level  string
		Format string
	}
}

// DefaultConfig returns the configuration used before flags/env are applied.
func DefaultConfig() *Config {
	cfg := &Config{
		MQTTHost:  "localhost",
		MQTTPort:  1883,
		KeepAlive: DefaultKeepAlive,
	}

	cfg.Logging.Level = LogLevel
	cfg.Logging.Format = LogFormat

	return cfg
}

// Load binds the given flag set through viper (BRIDGE_ environment prefix,
// "-" to "_" key replacement so BRIDGE_MQTT_HOST maps to --mqtt-host) and
// reads each key into a Config.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToReadConfig, err)
	}

	cfg.SystemID = v.GetString("system-id")
	cfg.MQTTHost = v.GetString("mqtt-host")
	cfg.MQTTPort = v.GetInt("mqtt-port")
	cfg.MQTTUser = v.GetString("mqtt-user")
	cfg.MQTTPassword = v.GetString("mqtt-password")
	cfg.CACert = v.GetString("ca-cert")
	cfg.DBusAddress = v.GetString("dbus-address")
	cfg.KeepAlive = v.GetInt("keep-alive")
	cfg.InitBroker = v.GetBool("init-broker")
	cfg.BlocklistFile = v.GetString("blocklist-file")
	cfg.StatusSocket = v.GetString("status-socket")

	if v.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.MQTTHost == "" {
		return errors.ErrMQTTHostRequired
	}

	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return errors.ErrInvalidMQTTPort
	}

	if c.SystemID == "" {
		return errors.ErrSystemIDRequired
	}

	return nil
}

// KeepAliveEnabled reports whether the configured keep-alive value activates
// the subscription-expiry mechanism. A value of zero or less disables it.
func (c *Config) KeepAliveEnabled() bool {
	return c.KeepAlive > 0
}
