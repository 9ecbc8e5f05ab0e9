// Package objectbus wraps the object bus (a D-Bus-like local IPC bus) in a
// small client interface the bridge's discovery, dispatch and router
// components depend on, implemented over github.com/godbus/dbus/v5.
package objectbus

// Kind tags the dynamic type carried by a Variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindDict
)

// Variant is a small tagged union for the dynamic values the object bus
// carries. An empty array unwraps to Null rather than an empty slice,
// matching the object bus convention that "no value" and "empty array" are
// the same invalid-value sentinel.
type Variant struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Array []Variant
	Dict  map[string]Variant
}

// Null returns the distinguished invalid-value Variant.
func Null() Variant { return Variant{Kind: KindNull} }

func FromBool(v bool) Variant    { return Variant{Kind: KindBool, Bool: v} }
func FromInt(v int64) Variant    { return Variant{Kind: KindInt, Int: v} }
func FromFloat(v float64) Variant { return Variant{Kind: KindFloat, Float: v} }
func FromString(v string) Variant { return Variant{Kind: KindString, Str: v} }

// IsNull reports whether v is the invalid-value sentinel, including an
// empty array (which the object bus uses interchangeably with "no value").
func (v Variant) IsNull() bool {
	return v.Kind == KindNull || (v.Kind == KindArray && len(v.Array) == 0)
}

// Unwrap converts a Variant to a plain Go value suitable for JSON encoding:
// bool, int64, float64, string, []interface{}, map[string]interface{}, or
// nil for the null/empty-array sentinel.
func (v Variant) Unwrap() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindArray:
		if len(v.Array) == 0 {
			return nil
		}

		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Unwrap()
		}

		return out
	case KindDict:
		out := make(map[string]interface{}, len(v.Dict))
		for k, e := range v.Dict {
			out[k] = e.Unwrap()
		}

		return out
	default:
		return nil
	}
}

// FromGo wraps a plain Go value (as produced by encoding/json.Unmarshal,
// i.e. bool, float64, string, []interface{}, map[string]interface{}, or
// nil) into a Variant suitable for a SetValue call.
func FromGo(x interface{}) Variant {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return FromBool(t)
	case float64:
		return FromFloat(t)
	case int:
		return FromInt(int64(t))
	case int64:
		return FromInt(t)
	case string:
		return FromString(t)
	case []interface{}:
		arr := make([]Variant, len(t))
		for i, e := range t {
			arr[i] = FromGo(e)
		}

		return Variant{Kind: KindArray, Array: arr}
	case map[string]interface{}:
		dict := make(map[string]Variant, len(t))
		for k, e := range t {
			dict[k] = FromGo(e)
		}

		return Variant{Kind: KindDict, Dict: dict}
	default:
		return Null()
	}
}

