package objectbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"dbusmqtt/internal/app/errors"
)

const busItemInterface = "com.victronenergy.BusItem"

// OwnerChange mirrors a NameOwnerChanged signal for one service name.
type OwnerChange struct {
	Name     string
	OldOwner string
	NewOwner string
}

// PropertyChange mirrors a single-object PropertiesChanged-style signal.
type PropertyChange struct {
	OwnerID string
	Path    string
	Value   Variant
}

// ItemsChange mirrors a bulk ItemsChanged signal covering several paths
// under one owner in a single emission.
type ItemsChange struct {
	OwnerID string
	Items   map[string]Variant
}

// Client is the bridge's view of the object bus: enough to enumerate
// services, read/write a single BusItem, introspect a subtree, and receive
// ownership and value-change signals.
type Client interface {
	ListNames(ctx context.Context) ([]string, error)
	NameOwner(ctx context.Context, service string) (string, error)
	GetValue(ctx context.Context, service, path string) (Variant, error)
	SetValue(ctx context.Context, service, path string, value Variant) error
	Introspect(ctx context.Context, service, path string) (string, error)

	OwnerChanges() <-chan OwnerChange
	PropertyChanges() <-chan PropertyChange
	ItemChanges() <-chan ItemsChange

	Close() error
}

type client struct {
	conn *dbus.Conn

	signals  chan *dbus.Signal
	ownerCh  chan OwnerChange
	propCh   chan PropertyChange
	itemsCh  chan ItemsChange
	done     chan struct{}
}

// Dial connects to the object bus at the given address. An empty address
// connects to the session bus, matching the original bridge's default; the
// literal values "system" and "session" select the corresponding well-known
// bus explicitly.
func Dial(address string) (Client, error) {
	conn, err := dialConn(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	c := &client{
		conn:    conn,
		signals: make(chan *dbus.Signal, 64),
		ownerCh: make(chan OwnerChange, 64),
		propCh:  make(chan PropertyChange, 256),
		itemsCh: make(chan ItemsChange, 256),
		done:    make(chan struct{}),
	}

	conn.Signal(c.signals)

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(busItemInterface),
		dbus.WithMatchMember("ItemsChanged"),
	); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	go c.relay()

	return c, nil
}

func dialConn(address string) (*dbus.Conn, error) {
	switch address {
	case "", "session":
		return dbus.ConnectSessionBus()
	case "system":
		return dbus.ConnectSystemBus()
	default:
		return dbus.Dial(address)
	}
}

func (c *client) relay() {
	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}

			c.dispatch(sig)
		}
	}
}

func (c *client) dispatch(sig *dbus.Signal) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) != 3 {
			return
		}

		name, _ := sig.Body[0].(string)
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)

		if !strings.HasPrefix(name, "com.victronenergy.") {
			return
		}

		select {
		case c.ownerCh <- OwnerChange{Name: name, OldOwner: oldOwner, NewOwner: newOwner}:
		default:
		}
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}

		changed, _ := sig.Body[1].(map[string]dbus.Variant)

		v, ok := changed["Value"]
		if !ok {
			return
		}

		select {
		case c.propCh <- PropertyChange{OwnerID: sig.Sender, Path: string(sig.Path), Value: fromDBusVariant(v)}:
		default:
		}
	case busItemInterface + ".ItemsChanged":
		if len(sig.Body) < 1 {
			return
		}

		raw, _ := sig.Body[0].(map[string]map[string]dbus.Variant)
		if raw == nil {
			return
		}

		items := make(map[string]Variant, len(raw))

		for path, changes := range raw {
			v, ok := changes["Value"]
			if !ok {
				continue
			}

			items[path] = fromDBusVariant(v)
		}

		select {
		case c.itemsCh <- ItemsChange{OwnerID: sig.Sender, Items: items}:
		default:
		}
	}
}

func (c *client) OwnerChanges() <-chan OwnerChange     { return c.ownerCh }
func (c *client) PropertyChanges() <-chan PropertyChange { return c.propCh }
func (c *client) ItemChanges() <-chan ItemsChange        { return c.itemsCh }

func (c *client) ListNames(ctx context.Context) ([]string, error) {
	var names []string

	call := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, call.Err)
	}

	if err := call.Store(&names); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	return names, nil
}

func (c *client) NameOwner(ctx context.Context, service string) (string, error) {
	var owner string

	call := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, service)
	if call.Err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrServiceUnknown, call.Err)
	}

	if err := call.Store(&owner); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrServiceUnknown, err)
	}

	return owner, nil
}

func (c *client) GetValue(ctx context.Context, service, path string) (Variant, error) {
	obj := c.conn.Object(service, dbus.ObjectPath(path))

	call := obj.CallWithContext(ctx, busItemInterface+".GetValue", 0)
	if call.Err != nil {
		return Variant{}, classifyCallError(call.Err)
	}

	if len(call.Body) == 0 {
		return Null(), nil
	}

	return fromNative(call.Body[0]), nil
}

func (c *client) SetValue(ctx context.Context, service, path string, value Variant) error {
	obj := c.conn.Object(service, dbus.ObjectPath(path))

	call := obj.CallWithContext(ctx, busItemInterface+".SetValue", 0, dbus.MakeVariant(value.Unwrap()))
	if call.Err != nil {
		return classifyCallError(call.Err)
	}

	return nil
}

func (c *client) Introspect(ctx context.Context, service, path string) (string, error) {
	obj := c.conn.Object(service, dbus.ObjectPath(path))

	var xmlStr string

	call := obj.CallWithContext(ctx, "org.freedesktop.DBus.Introspectable.Introspect", 0)
	if call.Err != nil {
		return "", classifyCallError(call.Err)
	}

	if err := call.Store(&xmlStr); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrIntrospectionFailed, err)
	}

	return xmlStr, nil
}

func (c *client) Close() error {
	close(c.done)

	return c.conn.Close()
}

// classifyCallError maps the handful of D-Bus errors the discovery engine
// treats specially (unknown object/method, service gone, no reply) onto our
// sentinel errors; everything else is wrapped as an opaque disconnection.
func classifyCallError(err error) error {
	dbusErr, ok := err.(dbus.Error)
	if !ok {
		return fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}

	switch dbusErr.Name {
	case "org.freedesktop.DBus.Error.UnknownObject":
		return fmt.Errorf("%w: %w", errors.ErrUnknownObject, err)
	case "org.freedesktop.DBus.Error.UnknownMethod", "org.freedesktop.DBus.Error.UnknownInterface":
		return fmt.Errorf("%w: %w", errors.ErrUnknownMethod, err)
	case "org.freedesktop.DBus.Error.ServiceUnknown":
		return fmt.Errorf("%w: %w", errors.ErrServiceUnknown, err)
	case "org.freedesktop.DBus.Error.Disconnected":
		return fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	case "org.freedesktop.DBus.Error.NoReply":
		return fmt.Errorf("%w: %w", errors.ErrNoReply, err)
	default:
		return fmt.Errorf("%w: %w", errors.ErrServiceDisconnected, err)
	}
}

func fromDBusVariant(v dbus.Variant) Variant {
	return fromNative(v.Value())
}

func fromNative(x interface{}) Variant {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return FromBool(t)
	case string:
		return FromString(t)
	case dbus.Variant:
		return fromDBusVariant(t)
	case float32:
		return FromFloat(float64(t))
	case float64:
		return FromFloat(t)
	case byte:
		return FromInt(int64(t))
	case int16:
		return FromInt(int64(t))
	case uint16:
		return FromInt(int64(t))
	case int32:
		return FromInt(int64(t))
	case uint32:
		return FromInt(int64(t))
	case int64:
		return FromInt(t)
	case uint64:
		return FromInt(int64(t))
	case int:
		return FromInt(int64(t))
	case []interface{}:
		arr := make([]Variant, len(t))
		for i, e := range t {
			arr[i] = fromNative(e)
		}

		return Variant{Kind: KindArray, Array: arr}
	case map[string]dbus.Variant:
		dict := make(map[string]Variant, len(t))
		for k, e := range t {
			dict[k] = fromDBusVariant(e)
		}

		return Variant{Kind: KindDict, Dict: dict}
	case map[string]interface{}:
		dict := make(map[string]Variant, len(t))
		for k, e := range t {
			dict[k] = fromNative(e)
		}

		return Variant{Kind: KindDict, Dict: dict}
	default:
		return Null()
	}
}
