// Package objectbustest provides an in-memory objectbus.Client fake for
// tests that exercise discovery, dispatch, and router logic without a real
// object bus.
package objectbustest

import (
	"context"
	"fmt"

	"dbusmqtt/internal/app/errors"
	"dbusmqtt/internal/objectbus"
)

// Object is one object-bus object: a value (if it's a BusItem leaf) or a
// set of child node names (if it's an introspection branch).
type Object struct {
	Value    objectbus.Variant
	IsLeaf   bool
	Children []string
}

// Fake implements objectbus.Client entirely in memory.
type Fake struct {
	Names   map[string]string // service name -> owner
	Objects map[string]map[string]*Object // service -> path -> object

	OwnerCh chan objectbus.OwnerChange
	PropCh  chan objectbus.PropertyChange
	ItemsCh chan objectbus.ItemsChange

	// SetValueErr, when non-nil, is returned by every SetValue call.
	SetValueErr error
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		Names:   map[string]string{},
		Objects: map[string]map[string]*Object{},
		OwnerCh: make(chan objectbus.OwnerChange, 64),
		PropCh:  make(chan objectbus.PropertyChange, 64),
		ItemsCh: make(chan objectbus.ItemsChange, 64),
	}
}

// AddLeaf registers a readable/writable BusItem value at service+path.
func (f *Fake) AddLeaf(service, path string, value objectbus.Variant) {
	if f.Objects[service] == nil {
		f.Objects[service] = map[string]*Object{}
	}

	f.Objects[service][path] = &Object{Value: value, IsLeaf: true}
}

// AddBranch registers an introspection-only node with the given children.
func (f *Fake) AddBranch(service, path string, children ...string) {
	if f.Objects[service] == nil {
		f.Objects[service] = map[string]*Object{}
	}

	f.Objects[service][path] = &Object{Children: children}
}

func (f *Fake) ListNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.Names))
	for n := range f.Names {
		names = append(names, n)
	}

	return names, nil
}

func (f *Fake) NameOwner(ctx context.Context, service string) (string, error) {
	owner, ok := f.Names[service]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrServiceUnknown, service)
	}

	return owner, nil
}

func (f *Fake) GetValue(ctx context.Context, service, path string) (objectbus.Variant, error) {
	obj := f.lookup(service, path)
	if obj == nil {
		return objectbus.Variant{}, fmt.Errorf("%w: %s%s", errors.ErrUnknownObject, service, path)
	}

	if !obj.IsLeaf {
		return objectbus.Variant{}, fmt.Errorf("%w: %s%s", errors.ErrUnknownMethod, service, path)
	}

	return obj.Value, nil
}

func (f *Fake) SetValue(ctx context.Context, service, path string, value objectbus.Variant) error {
	if f.SetValueErr != nil {
		return f.SetValueErr
	}

	obj := f.lookup(service, path)
	if obj == nil {
		return fmt.Errorf("%w: %s%s", errors.ErrUnknownObject, service, path)
	}

	obj.Value = value

	return nil
}

func (f *Fake) Introspect(ctx context.Context, service, path string) (string, error) {
	obj := f.lookup(service, path)
	if obj == nil {
		return "", fmt.Errorf("%w: %s%s", errors.ErrUnknownObject, service, path)
	}

	if obj.IsLeaf {
		return `<node><interface name="com.victronenergy.BusItem"/></node>`, nil
	}

	doc := "<node>"
	for _, c := range obj.Children {
		doc += fmt.Sprintf(`<node name="%s"/>`, c)
	}
	doc += "</node>"

	return doc, nil
}

func (f *Fake) lookup(service, path string) *Object {
	objects, ok := f.Objects[service]
	if !ok {
		return nil
	}

	return objects[path]
}

func (f *Fake) OwnerChanges() <-chan objectbus.OwnerChange     { return f.OwnerCh }
func (f *Fake) PropertyChanges() <-chan objectbus.PropertyChange { return f.PropCh }
func (f *Fake) ItemChanges() <-chan objectbus.ItemsChange        { return f.ItemsCh }

func (f *Fake) Close() error { return nil }
