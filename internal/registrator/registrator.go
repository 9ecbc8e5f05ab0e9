// Package registrator is the bridge's seam onto the cloud-side credential
// provisioner: the out-of-scope system that knows how to re-register this
// bridge with the broker's cloud front-end after a connection loss. This
// package only defines the interface the router depends on and a no-op
// implementation; the provisioner's actual protocol is never implemented
// here (see DESIGN.md).
package registrator

import "context"

// Registrator re-establishes this bridge's cloud-side registration. Router
// calls Reconnect once when it observes the cloud connection-state
// meta-topic transition from connected to lost.
type Registrator interface {
	Reconnect(ctx context.Context) error
}

// NoOp is a Registrator that does nothing, used whenever no cloud
// registrator endpoint is configured.
type NoOp struct{}

func (NoOp) Reconnect(context.Context) error { return nil }
