package convert

import (
	"fmt"
	"reflect"

	"github.com/wippyai/hostbridge/errors"
)

// Integer is the set of types that can back an enumeration.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// DefineEnum registers E as an enumeration with the given declared
// values. Guest integers convert to E only when they name a declared value,
// unless flags is set, in which case any combination is accepted. Values
// of E cross to the guest wrapped, keeping their identity.
func DefineEnum[E Integer](c *Converter, flags bool, values ...E) error {
	t := reflect.TypeFor[E]()
	if t.Kind() == reflect.Interface {
		return errors.InvalidInput(errors.PhaseCompile, "enum type must be concrete")
	}

	base, err := c.compiler.Compile(baseType(t))
	if err != nil {
		return err
	}

	e := &Enum{
		Values:     make(map[int64]string, len(values)),
		Underlying: base.Kind,
		Flags:      flags,
	}
	for _, v := range values {
		e.Values[enumBits(reflect.ValueOf(v))] = fmt.Sprint(v)
	}
	c.compiler.defineEnum(t, e)
	return nil
}

// baseType returns the predeclared type with the same kind as t.
func baseType(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Int:
		return reflect.TypeFor[int]()
	case reflect.Int8:
		return reflect.TypeFor[int8]()
	case reflect.Int16:
		return reflect.TypeFor[int16]()
	case reflect.Int32:
		return reflect.TypeFor[int32]()
	case reflect.Int64:
		return reflect.TypeFor[int64]()
	case reflect.Uint:
		return reflect.TypeFor[uint]()
	case reflect.Uint8:
		return reflect.TypeFor[uint8]()
	case reflect.Uint16:
		return reflect.TypeFor[uint16]()
	case reflect.Uint32:
		return reflect.TypeFor[uint32]()
	case reflect.Uint64:
		return reflect.TypeFor[uint64]()
	case reflect.Uintptr:
		return reflect.TypeFor[uintptr]()
	}
	return t
}

func enumBits(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}
