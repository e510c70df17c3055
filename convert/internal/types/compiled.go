package types

import (
	"reflect"
)

// Type is the compiled conversion descriptor of a Go type.
type Type struct {
	GoType reflect.Type
	Elem   *Type // Nullable, Slice, Array and Map value
	Key    *Type // Map key
	Enum   *Enum
	Len    int // Array length
	Kind   Kind
}

// Enum describes a registered enumeration. Values are keyed by the
// underlying integer, with unsigned values stored bit for bit.
type Enum struct {
	Values     map[int64]string
	Underlying Kind
	Flags      bool
}

// Defined reports whether n is a declared value.
func (e *Enum) Defined(n int64) bool {
	_, ok := e.Values[n]
	return ok
}

// Base returns the kind used to move the value across the boundary. For
// enums this is the underlying integer kind.
func (t *Type) Base() Kind {
	if t.Kind == KindEnum && t.Enum != nil {
		return t.Enum.Underlying
	}
	return t.Kind
}

// Nilable reports whether None can convert to this type.
func (t *Type) Nilable() bool {
	switch t.Kind {
	case KindNullable, KindSlice, KindBytes, KindMap, KindAny, KindInterface, KindHandle:
		return true
	case KindOpaque:
		switch t.GoType.Kind() {
		case reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
			return true
		}
	}
	return false
}
