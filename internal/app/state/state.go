// Package state tracks the bridge's own lifecycle phase as a small finite
// state machine: Starting, Connecting, Running, Draining, Stopped. The
// bridge fires its transitions and each one is logged; the phase is not
// published on any topic and the core loop does not consult it.
package state

import (
	"context"

	"github.com/looplab/fsm"

	"dbusmqtt/internal/config/logger"
)

// Phase names.
const (
	Starting   = "starting"
	Connecting = "connecting"
	Running    = "running"
	Draining   = "draining"
	Stopped    = "stopped"
)

// Event names.
const (
	EventConnect  = "connect"
	EventReady    = "ready"
	EventDrain    = "drain"
	EventShutdown = "shutdown"
)

// Manager tracks the bridge's current phase.
type Manager struct {
	fsm *fsm.FSM
	log logger.Logger
}

// New creates a Manager starting in the Starting phase.
func New(log logger.Logger) *Manager {
	m := &Manager{log: log}

	m.fsm = fsm.NewFSM(
		Starting,
		fsm.Events{
			{Name: EventConnect, Src: []string{Starting}, Dst: Connecting},
			{Name: EventReady, Src: []string{Connecting}, Dst: Running},
			{Name: EventDrain, Src: []string{Running}, Dst: Draining},
			{Name: EventShutdown, Src: []string{Starting, Connecting, Running, Draining}, Dst: Stopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.log.Info().Str("phase", e.Dst).Msg("bridge phase transition")
			},
		},
	)

	return m
}

// Current returns the bridge's current phase name.
func (m *Manager) Current() string {
	return m.fsm.Current()
}

// Fire advances the FSM by the given event name. An invalid transition for
// the current phase is returned as an error and never panics; callers
// treat it the way any other routed error is treated — logged, not fatal.
func (m *Manager) Fire(ctx context.Context, event string) error {
	return m.fsm.Event(ctx, event)
}
