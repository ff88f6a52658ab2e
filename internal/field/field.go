// Package field implements the typed Field value and the per-transaction
// data store that addresses fields by case-insensitive name, grounded on
// the teacher's infrastructure/state.PersistentState: a mutex-guarded
// map[string][]byte with a narrow load/save/list surface. We generalize
// the value type from raw bytes to the engine's small typed union (number,
// byte string, list, stream) and add %{NAME} expansion.
package field

import "fmt"

// Type discriminates a Field's value.
type Type int

const (
	TypeNum Type = iota
	TypeByteStr
	TypeList
	TypeStream
)

func (t Type) String() string {
	switch t {
	case TypeNum:
		return "num"
	case TypeByteStr:
		return "bytestr"
	case TypeList:
		return "list"
	case TypeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// StreamChunk is one lazily-produced piece of a stream field.
type StreamChunk struct {
	Data []byte
	Last bool
}

// StreamFunc produces the next chunk of a stream field on each call. A
// stream is exhausted once it returns a chunk with Last == true or an
// error.
type StreamFunc func() (StreamChunk, error)

// Field is (name, type, value). Names are case-insensitive for lookup
// purposes; the Name field itself preserves the caller's original casing
// for display.
type Field struct {
	Name   string
	Type   Type
	Num    float64
	Bytes  []byte
	List   []*Field
	Stream StreamFunc
}

// NewNum constructs a numeric field.
func NewNum(name string, n float64) *Field {
	return &Field{Name: name, Type: TypeNum, Num: n}
}

// NewByteStr constructs a byte-string field.
func NewByteStr(name string, b []byte) *Field {
	return &Field{Name: name, Type: TypeByteStr, Bytes: b}
}

// NewList constructs a list field from already-built elements.
func NewList(name string, elems []*Field) *Field {
	return &Field{Name: name, Type: TypeList, List: elems}
}

// NewStream constructs a stream field.
func NewStream(name string, fn StreamFunc) *Field {
	return &Field{Name: name, Type: TypeStream, Stream: fn}
}

// IsNull reports whether f is the nil pointer — the engine's representation
// of an absent value, distinct from a present-but-empty byte string or list.
func IsNull(f *Field) bool { return f == nil }

// String renders the field's value as a string, used by %{NAME}
// expansion and by operators/transformations that want a uniform textual
// view regardless of underlying type.
func (f *Field) String() string {
	if f == nil {
		return ""
	}
	switch f.Type {
	case TypeNum:
		return trimFloat(f.Num)
	case TypeByteStr:
		return string(f.Bytes)
	case TypeList:
		out := make([]byte, 0, 2*len(f.List))
		out = append(out, '[')
		for i, e := range f.List {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, e.String()...)
		}
		out = append(out, ']')
		return string(out)
	case TypeStream:
		return "<stream>"
	default:
		return ""
	}
}

// Clone returns a deep copy of f, used by transformations that must not
// mutate their input.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	clone := &Field{Name: f.Name, Type: f.Type, Num: f.Num, Stream: f.Stream}
	if f.Bytes != nil {
		clone.Bytes = append([]byte(nil), f.Bytes...)
	}
	if f.List != nil {
		clone.List = make([]*Field, len(f.List))
		for i, e := range f.List {
			clone.List[i] = e.Clone()
		}
	}
	return clone
}

func trimFloat(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
