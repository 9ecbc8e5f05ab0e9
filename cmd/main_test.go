package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxevent"

	"dbusmqtt/internal/config"
	"dbusmqtt/internal/config/logger"
)

func Test_CreateApp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SystemID = "d0ff500097c0"
	cfg.Logging.Level = logger.InfoLevel

	opt := createApp(cfg)
	assert.NotNil(t, opt)
}

func Test_CreateApp_WithDebugLogging(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SystemID = "d0ff500097c0"
	cfg.Logging.Level = logger.DebugLevel

	opt := createApp(cfg)
	assert.NotNil(t, opt)
}

func Test_CreateFxLogger_DebugLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = logger.DebugLevel

	loggerFunc := createFxLogger(cfg)()
	assert.IsType(t, &fxevent.ConsoleLogger{}, loggerFunc)
}

func Test_CreateFxLogger_NonDebugLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = logger.InfoLevel

	loggerFunc := createFxLogger(cfg)()
	assert.Equal(t, fxevent.NopLogger, loggerFunc)
}

func Test_LoadConfig_RequiresSystemID(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"dbusmqtt"}
	defer func() { os.Args = oldArgs }()

	_, err := loadConfig()
	assert.Error(t, err, "system id is required when no --system-id flag or BRIDGE_SYSTEM_ID env var is set")
}
