package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"dbusmqtt/internal/app/cli"
	"dbusmqtt/internal/config/logger"
)

type fakeBridge struct{ calls int }

func (f *fakeBridge) Run(context.Context) error {
	f.calls++
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug() logger.Event                  { return noopEvent{} }
func (noopLogger) Info() logger.Event                   { return noopEvent{} }
func (noopLogger) Warn() logger.Event                   { return noopEvent{} }
func (noopLogger) Error() logger.Event                  { return noopEvent{} }
func (n noopLogger) WithComponent(string) logger.Logger { return n }

type noopEvent struct{}

func (noopEvent) Msg(string)                              {}
func (noopEvent) Msgf(string, ...interface{})             {}
func (e noopEvent) Str(string, string) logger.Event       { return e }
func (e noopEvent) Int(string, int) logger.Event          { return e }
func (e noopEvent) Dur(string, time.Duration) logger.Event { return e }
func (e noopEvent) Err(error) logger.Event                 { return e }

type capturingLifecycle struct {
	hooks []fx.Hook
}

func (c *capturingLifecycle) Append(hook fx.Hook) {
	c.hooks = append(c.hooks, hook)
}

func Test_NewApp(t *testing.T) {
	c := cli.New(&fakeBridge{})

	application := NewApp(c, nil, noopLogger{})

	assert.NotNil(t, application)
	assert.Equal(t, c, application.cli)
	assert.Nil(t, application.blocklist)
}

func Test_Register_AppendsOneHookWithBothCallbacks(t *testing.T) {
	c := cli.New(&fakeBridge{})
	application := NewApp(c, nil, noopLogger{})

	lc := &capturingLifecycle{}
	Register(lc, application)

	require.Len(t, lc.hooks, 1)
	assert.NotNil(t, lc.hooks[0].OnStart)
	assert.NotNil(t, lc.hooks[0].OnStop)
}

func Test_Register_OnStartThenOnStopDoesNotBlockOrError(t *testing.T) {
	c := cli.New(&fakeBridge{})
	application := NewApp(c, nil, noopLogger{})

	lc := &capturingLifecycle{}
	Register(lc, application)

	require.NoError(t, lc.hooks[0].OnStart(context.Background()))
	require.NoError(t, lc.hooks[0].OnStop(context.Background()))
}
