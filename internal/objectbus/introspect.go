package objectbus

import "encoding/xml"

// introspectNode mirrors the handful of <node>/<interface> attributes the
// discovery engine's recursive walk needs; the full D-Bus introspection
// schema carries far more (methods, signals, properties with types) that
// this bridge never inspects.
type introspectNode struct {
	XMLName    xml.Name             `xml:"node"`
	Interfaces []introspectInterface `xml:"interface"`
	Nodes      []introspectChild     `xml:"node"`
}

type introspectInterface struct {
	Name string `xml:"name,attr"`
}

type introspectChild struct {
	Name string `xml:"name,attr"`
}

// Introspection is the parsed result of one Introspect call.
type Introspection struct {
	// HasBusItem reports whether this object implements
	// com.victronenergy.BusItem directly (i.e. is a leaf value).
	HasBusItem bool

	// Children holds the names of any child nodes to recurse into. A
	// leaf (HasBusItem true) never has children in practice, but both
	// are parsed independently since the schema permits it.
	Children []string
}

// ParseIntrospection parses the XML body returned by an Introspect call.
func ParseIntrospection(document string) (Introspection, error) {
	var node introspectNode

	if err := xml.Unmarshal([]byte(document), &node); err != nil {
		return Introspection{}, err
	}

	result := Introspection{}

	for _, iface := range node.Interfaces {
		if iface.Name == busItemInterface {
			result.HasBusItem = true
		}
	}

	for _, child := range node.Nodes {
		if child.Name != "" {
			result.Children = append(result.Children, child.Name)
		}
	}

	return result, nil
}

// JoinPath appends a child node name to a D-Bus object path without
// producing a double slash, mirroring the original bridge's path
// concatenation rule during introspection recursion.
func JoinPath(path, child string) string {
	if path == "/" {
		return "/" + child
	}

	return path + "/" + child
}
