package convert

import (
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// ToGuest converts v to a new guest value. declared is the static type v
// is exposed as; nil means its dynamic type. A non-empty interface type
// makes the value cross wrapped, typed as that interface.
func (c *Converter) ToGuest(v any, declared reflect.Type) (ref.Owned, error) {
	if o, ok := v.(*guest.Object); ok && o != nil {
		return owned(o.NewRef(), errors.PhaseEncode, nil)
	}
	if v == nil {
		return c.g.NewNone(), nil
	}
	return c.encode(reflect.ValueOf(v), declared, nil)
}

// ToGuestBestEffort converts v by its dynamic type. Values that cannot be
// converted structurally, such as times outside the guest calendar, cross
// wrapped instead of failing.
func (c *Converter) ToGuestBestEffort(v any) (ref.Owned, error) {
	h, err := c.ToGuest(v, nil)
	if err == nil {
		return h, nil
	}
	if errors.IsKind(err, errors.KindRangeOverflow) {
		return owned(c.g.Wrap(v, nil), errors.PhaseEncode, nil)
	}
	return ref.Owned{}, err
}

func (c *Converter) encode(rv reflect.Value, declared reflect.Type, path []string) (ref.Owned, error) {
	static := declared != nil && declared.Kind() == reflect.Interface && declared.NumMethod() > 0

	for rv.IsValid() && rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || isNil(rv) {
		return c.g.NewNone(), nil
	}
	if o, ok := rv.Interface().(*guest.Object); ok {
		return owned(o.NewRef(), errors.PhaseEncode, path)
	}

	t := rv.Type()
	ct, err := c.compiler.Compile(t)
	if err != nil {
		return ref.Owned{}, err
	}

	switch ct.Kind {
	case KindSlice, KindArray, KindMap, KindBytes:
	default:
		if !ct.Kind.IsPrimitive() {
			if h, ok := c.codecs.encode(c.g, rv.Interface(), declared); ok {
				return h, nil
			}
		}
	}

	if static {
		return owned(c.g.Wrap(rv.Interface(), declared), errors.PhaseEncode, path)
	}

	switch ct.Kind {
	case KindArray, KindEnum:
		return owned(c.g.Wrap(rv.Interface(), t), errors.PhaseEncode, path)
	case KindBytes:
		return owned(c.g.NewBytes(rv.Bytes()), errors.PhaseEncode, path)
	case KindSlice:
		if t.Implements(changeNotifierType) {
			return owned(c.g.Wrap(rv.Interface(), t), errors.PhaseEncode, path)
		}
		return c.encodeSlice(rv, ct, path)
	case KindBool:
		return owned(c.g.NewBool(rv.Bool()), errors.PhaseEncode, path)
	case KindInt, KindInt8, KindInt16, KindInt32, KindInt64:
		return owned(c.g.NewInt(rv.Int()), errors.PhaseEncode, path)
	case KindUint, KindUint8, KindUint16, KindUint32, KindUint64, KindUintptr:
		return owned(c.g.NewUint(rv.Uint()), errors.PhaseEncode, path)
	case KindFloat32, KindFloat64:
		return owned(c.g.NewFloat(rv.Float()), errors.PhaseEncode, path)
	case KindString:
		return owned(c.g.NewString(rv.String()), errors.PhaseEncode, path)
	case KindDecimal:
		d := rv.Interface().(apd.Decimal)
		return c.encodeDecimal(&d, path)
	case KindTime:
		return c.encodeTime(rv.Interface().(time.Time), path)
	case KindDuration:
		return c.encodeDuration(time.Duration(rv.Int()), path)
	case KindNullable:
		switch ct.Elem.Kind {
		case KindDecimal, KindTime, KindDuration:
			return c.encode(rv.Elem(), nil, path)
		}
		if ct.Elem.Kind.IsPrimitive() {
			return c.encode(rv.Elem(), nil, path)
		}
	}

	return owned(c.g.Wrap(rv.Interface(), t), errors.PhaseEncode, path)
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// encodeSlice copies a slice into a new guest list. A nil slice becomes
// an empty list.
func (c *Converter) encodeSlice(rv reflect.Value, ct *Type, path []string) (ref.Owned, error) {
	list, err := owned(c.g.NewList(), errors.PhaseEncode, path)
	if err != nil {
		return ref.Owned{}, err
	}
	defer list.Release()

	elem := ct.Elem.GoType
	for i := 0; i < rv.Len(); i++ {
		item, err := c.encode(rv.Index(i), elem, indexPath(path, i))
		if err != nil {
			return ref.Owned{}, err
		}
		err = c.g.ListAppend(list.Borrow(), item.Borrow())
		item.Release()
		if err != nil {
			return ref.Owned{}, errors.Wrap(errors.PhaseEncode, errors.KindUnsupported, err, "append list item")
		}
	}
	return list.Move(), nil
}

func (c *Converter) encodeDecimal(d *apd.Decimal, path []string) (ref.Owned, error) {
	f, err := d.Float64()
	if err != nil {
		return ref.Owned{}, errors.New(errors.PhaseEncode, errors.KindRangeOverflow).
			Path(path...).
			HostType("apd.Decimal").
			Value(d.String()).
			Cause(err).
			Detail("decimal %s is not representable as float", d).
			Build()
	}
	return owned(c.g.NewFloat(f), errors.PhaseEncode, path)
}

var changeNotifierType = reflect.TypeFor[ChangeNotifier]()
