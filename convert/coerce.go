package convert

import (
	"fmt"
	"reflect"

	"github.com/wippyai/hostbridge/convert/internal/numeric"
	"github.com/wippyai/hostbridge/errors"
)

// Coerce converts a host value to t. Numbers convert across widths when
// the value is exactly representable; other values must be assignable or
// share t's kind.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, t.String(), "nil")
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := numeric.CoerceToInt64(basic(rv))
		if !ok {
			return reflect.Value{}, coerceError(v, t)
		}
		if !numeric.FitsInt(n, t.Bits()) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, nil, n, t.String())
		}
		out.SetInt(n)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := numeric.CoerceToUint64(basic(rv))
		if !ok {
			return reflect.Value{}, coerceError(v, t)
		}
		if !numeric.FitsUint(n, t.Bits()) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, nil, n, t.String())
		}
		out.SetUint(n)
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, ok := numeric.CoerceToFloat64(basic(rv))
		if !ok {
			return reflect.Value{}, coerceError(v, t)
		}
		if t.Kind() == reflect.Float32 && !numeric.FitsFloat32(f) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, nil, f, t.String())
		}
		out.SetFloat(f)
		return out, nil
	}

	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, coerceError(v, t)
}

// basic strips a defined numeric type down to its predeclared kind.
func basic(rv reflect.Value) any {
	switch {
	case rv.CanInt():
		return rv.Int()
	case rv.CanUint():
		return rv.Uint()
	case rv.CanFloat():
		return rv.Float()
	}
	return rv.Interface()
}

func coerceError(v any, t reflect.Type) error {
	return errors.TypeMismatch(errors.PhaseDecode, nil, t.String(), fmt.Sprintf("%T", v))
}
