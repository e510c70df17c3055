package convert

import (
	stderrors "errors"
	"reflect"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/convert/internal/numeric"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// ToHost converts the guest value behind h to target. When reportErrors
// is set a failure also sets the guest error indicator. h stays borrowed.
func (c *Converter) ToHost(h ref.Borrowed, target reflect.Type, reportErrors bool) (any, error) {
	rv, err := c.ToHostValue(h, target, reportErrors)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// ToHostValue is ToHost returning a reflect.Value of type target.
func (c *Converter) ToHostValue(h ref.Borrowed, target reflect.Type, reportErrors bool) (reflect.Value, error) {
	rv, err := c.toHost(h, target)
	if err != nil {
		if reportErrors {
			c.g.SetError(err)
		}
		return reflect.Value{}, err
	}
	return rv, nil
}

func (c *Converter) toHost(h ref.Borrowed, target reflect.Type) (reflect.Value, error) {
	if h.IsNull() {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Cause(guest.ErrNull).
			Detail("null guest handle").
			Build()
	}
	ct, err := c.compiler.Compile(target)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.decode(h, ct, nil)
}

func (c *Converter) decode(h ref.Borrowed, ct *Type, path []string) (reflect.Value, error) {
	target := ct.GoType

	if ct.Kind == KindHandle {
		return reflect.ValueOf(guest.NewObject(c.g, h)), nil
	}

	if v, ok := c.g.TryUnwrap(h); ok {
		return c.decodeForeign(h, v, ct, path)
	}

	kind := c.g.Kind(h)
	if kind == guest.KindNone {
		if ct.Nilable() {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, c.mismatch(h, path, target)
	}

	switch ct.Kind {
	case KindNullable:
		elem, err := c.decode(h, ct.Elem, path)
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(elem)
		return p, nil
	case KindBytes:
		if kind == guest.KindBytes {
			b, err := c.g.AsBytes(h)
			if err != nil {
				return reflect.Value{}, c.mismatch(h, path, target)
			}
			return reflect.ValueOf(b).Convert(target), nil
		}
		return c.decodeSequence(h, ct, c.bytesElem(), path)
	case KindSlice, KindArray:
		return c.decodeSequence(h, ct, ct.Elem, path)
	case KindMap:
		return c.decodeMap(h, ct, path)
	case KindEnum:
		return c.decodeEnum(h, ct, path)
	case KindAny, KindInterface:
		return c.decodeAny(h, kind, ct, path)
	case KindBool:
		b, err := c.g.AsBool(h)
		if err != nil {
			return reflect.Value{}, c.mismatch(h, path, target)
		}
		return reflect.ValueOf(b).Convert(target), nil
	case KindString:
		s, err := c.g.AsString(h)
		if err != nil {
			return reflect.Value{}, c.mismatch(h, path, target)
		}
		return reflect.ValueOf(s).Convert(target), nil
	case KindInt, KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint, KindUint8, KindUint16, KindUint32, KindUint64, KindUintptr,
		KindFloat32, KindFloat64:
		return c.decodeNumber(h, ct.Kind, target, path)
	case KindDecimal:
		d, err := c.decodeDecimal(h, kind, path)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(*d), nil
	case KindTime:
		t, err := c.decodeTime(h, path)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t), nil
	case KindDuration:
		d, err := c.decodeDuration(h, path)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}

	if v, ok := c.codecs.decode(c.g, h, target); ok {
		return assignable(v, target, func() error { return c.mismatch(h, path, target) })
	}
	return reflect.Value{}, c.mismatch(h, path, target)
}

// decodeForeign handles a guest value that wraps a host value: it is
// returned as is when assignable, otherwise through its own conversion.
func (c *Converter) decodeForeign(h ref.Borrowed, v any, ct *Type, path []string) (reflect.Value, error) {
	target := ct.GoType
	if v == nil {
		if ct.Nilable() {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, c.mismatch(h, path, target)
	}

	vt := reflect.TypeOf(v)
	if vt.AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(reflect.ValueOf(v))
		return out, nil
	}
	if target.Kind() == reflect.Pointer && vt.AssignableTo(target.Elem()) {
		p := reflect.New(target.Elem())
		p.Elem().Set(reflect.ValueOf(v))
		return p, nil
	}
	if cv, ok := v.(Convertible); ok {
		if out, ok := cv.ConvertTo(target); ok {
			return assignable(out, target, func() error { return c.mismatch(h, path, target) })
		}
	}
	return reflect.Value{}, c.mismatch(h, path, target)
}

// assignable returns v as a value of type t, converting between types of
// the same kind.
func assignable(v any, t reflect.Type, fail func() error) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fail()
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fail()
}

// decodeSequence fills a slice or array from the guest iterator protocol.
// The first element failure fails the whole conversion.
func (c *Converter) decodeSequence(h ref.Borrowed, ct *Type, elem *Type, path []string) (reflect.Value, error) {
	target := ct.GoType
	it, err := c.g.Iter(h)
	if err != nil {
		return reflect.Value{}, c.mismatch(h, path, target)
	}
	defer it.Release()

	size, _ := c.g.Len(h)
	out := reflect.MakeSlice(reflect.SliceOf(target.Elem()), 0, size)

	fail := func(err error) (reflect.Value, error) {
		CloseObjects(out)
		return reflect.Value{}, err
	}

	for i := 0; ; i++ {
		item, ok, err := c.g.Next(it.Borrow())
		if err != nil {
			return fail(errors.Wrap(errors.PhaseDecode, errors.KindTypeMismatch, err, "iterate "+target.String()))
		}
		if !ok {
			break
		}
		v, err := c.decode(item.Borrow(), elem, indexPath(path, i))
		item.Release()
		if err != nil {
			return fail(err)
		}
		out = reflect.Append(out, v)
	}

	if ct.Kind != KindArray {
		return out.Convert(target), nil
	}
	if out.Len() != ct.Len {
		CloseObjects(out)
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Path(path...).
			HostType(target.String()).
			GuestType(c.g.TypeName(h)).
			Detail("expected %d elements, got %d", ct.Len, out.Len()).
			Build()
	}
	arr := reflect.New(target).Elem()
	reflect.Copy(arr, out)
	return arr, nil
}

func (c *Converter) bytesElem() *Type {
	ct, _ := c.compiler.Compile(reflect.TypeFor[uint8]())
	return ct
}

// decodeMap fills a map from a guest dict.
func (c *Converter) decodeMap(h ref.Borrowed, ct *Type, path []string) (reflect.Value, error) {
	target := ct.GoType
	if c.g.Kind(h) != guest.KindDict {
		return reflect.Value{}, c.mismatch(h, path, target)
	}
	it, err := c.g.Iter(h)
	if err != nil {
		return reflect.Value{}, c.mismatch(h, path, target)
	}
	defer it.Release()

	size, _ := c.g.Len(h)
	out := reflect.MakeMapWithSize(target, size)
	for {
		key, ok, err := c.g.Next(it.Borrow())
		if err != nil {
			CloseObjects(out)
			return reflect.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindTypeMismatch, err, "iterate "+target.String())
		}
		if !ok {
			break
		}
		k, v, err := c.decodeEntry(h, key.Borrow(), ct, path)
		key.Release()
		if err != nil {
			CloseObjects(out)
			return reflect.Value{}, err
		}
		out.SetMapIndex(k, v)
	}
	return out, nil
}

func (c *Converter) decodeEntry(dict, key ref.Borrowed, ct *Type, path []string) (reflect.Value, reflect.Value, error) {
	keyStr, _ := c.g.Str(key)
	entryPath := appendPath(path, "["+keyStr+"]")

	k, err := c.decode(key, ct.Key, entryPath)
	if err != nil {
		return reflect.Value{}, reflect.Value{}, err
	}
	item, err := c.g.GetItem(dict, key)
	if err != nil {
		CloseObjects(k)
		return reflect.Value{}, reflect.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindNotFound, err, "dict item "+keyStr)
	}
	defer item.Release()
	v, err := c.decode(item.Borrow(), ct.Elem, entryPath)
	if err != nil {
		CloseObjects(k)
		return reflect.Value{}, reflect.Value{}, err
	}
	return k, v, nil
}

// decodeEnum reads the underlying integer and accepts declared values, or
// any value of a flags enum.
func (c *Converter) decodeEnum(h ref.Borrowed, ct *Type, path []string) (reflect.Value, error) {
	target := ct.GoType
	e := ct.Enum
	base, err := c.decodeNumber(h, e.Underlying, target, path)
	if err != nil {
		return reflect.Value{}, err
	}
	n := enumBits(base)
	if !e.Defined(n) && !e.Flags {
		if e.Underlying.IsUnsigned() {
			return reflect.Value{}, errors.InvalidEnum(errors.PhaseDecode, path, uint64(n), target.String())
		}
		return reflect.Value{}, errors.InvalidEnum(errors.PhaseDecode, path, n, target.String())
	}
	return base, nil
}

// decodeNumber reads a guest number into a numeric kind. The wrong guest
// kind is a type mismatch; a value outside the host width is an overflow.
func (c *Converter) decodeNumber(h ref.Borrowed, kind Kind, target reflect.Type, path []string) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	hostName := kind.String()

	switch {
	case kind.IsSigned():
		n, err := c.g.AsInt64(h)
		if err != nil {
			return reflect.Value{}, c.numberError(h, path, target, hostName, err)
		}
		if !numeric.FitsInt(n, kind.Bits()) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, path, n, hostName)
		}
		out.SetInt(n)
	case kind.IsUnsigned():
		n, err := c.g.AsUint64(h)
		if err != nil {
			return reflect.Value{}, c.numberError(h, path, target, hostName, err)
		}
		if !numeric.FitsUint(n, kind.Bits()) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, path, n, hostName)
		}
		out.SetUint(n)
	case kind.IsFloat():
		if c.g.Kind(h) == guest.KindBool {
			return reflect.Value{}, c.mismatch(h, path, target)
		}
		f, err := c.g.AsFloat(h)
		if err != nil {
			return reflect.Value{}, c.mismatch(h, path, target)
		}
		if kind == KindFloat32 && !numeric.FitsFloat32(f) {
			return reflect.Value{}, errors.RangeOverflow(errors.PhaseDecode, path, f, hostName)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, c.mismatch(h, path, target)
	}
	return out, nil
}

func (c *Converter) numberError(h ref.Borrowed, path []string, target reflect.Type, hostName string, err error) error {
	if stderrors.Is(err, guest.ErrOverflow) {
		value := any(c.g.TypeName(h))
		if b, berr := c.g.AsBigInt(h); berr == nil {
			value = b
		}
		return errors.RangeOverflow(errors.PhaseDecode, path, value, hostName)
	}
	return c.mismatch(h, path, target)
}

// decodeDecimal converts guest ints and floats exactly. Other non-string
// guest objects are parsed from their string form.
func (c *Converter) decodeDecimal(h ref.Borrowed, kind guest.Kind, path []string) (*apd.Decimal, error) {
	switch kind {
	case guest.KindInt:
		b, err := c.g.AsBigInt(h)
		if err != nil {
			return nil, c.mismatch(h, path, decimalType)
		}
		return apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(b), 0), nil
	case guest.KindFloat:
		f, err := c.g.AsFloat(h)
		if err != nil {
			return nil, c.mismatch(h, path, decimalType)
		}
		d, err := new(apd.Decimal).SetFloat64(f)
		if err != nil {
			return nil, errors.RangeOverflow(errors.PhaseDecode, path, f, "apd.Decimal")
		}
		return d, nil
	case guest.KindString, guest.KindBool, guest.KindNone:
		return nil, c.mismatch(h, path, decimalType)
	}

	s, err := c.g.Str(h)
	if err != nil {
		return nil, c.mismatch(h, path, decimalType)
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, c.mismatch(h, path, decimalType)
	}
	return d, nil
}

// decodeAny dispatches on the guest kind for untyped targets. A
// non-empty interface target accepts the result only if it implements
// the interface.
func (c *Converter) decodeAny(h ref.Borrowed, kind guest.Kind, ct *Type, path []string) (reflect.Value, error) {
	target := ct.GoType
	v, err := c.untyped(h, kind, ct, path)
	if err != nil {
		return reflect.Value{}, err
	}
	return assignable(v, target, func() error {
		if o, ok := v.(*guest.Object); ok {
			o.Close()
		}
		return c.mismatch(h, path, target)
	})
}

func (c *Converter) untyped(h ref.Borrowed, kind guest.Kind, ct *Type, path []string) (any, error) {
	switch kind {
	case guest.KindString:
		return c.g.AsString(h)
	case guest.KindBool:
		return c.g.AsBool(h)
	case guest.KindInt:
		if n, err := c.g.AsInt64(h); err == nil {
			return int(n), nil
		}
		if n, err := c.g.AsUint64(h); err == nil {
			return n, nil
		}
		b, err := c.g.AsBigInt(h)
		if err != nil {
			return nil, c.mismatch(h, path, ct.GoType)
		}
		return b, nil
	case guest.KindFloat:
		return c.g.AsFloat(h)
	case guest.KindBytes:
		return c.g.AsBytes(h)
	case guest.KindDateTime, guest.KindDate:
		return c.decodeTime(h, path)
	case guest.KindTimeDelta:
		return c.decodeDuration(h, path)
	}

	if v, ok := c.codecs.decode(c.g, h, ct.GoType); ok {
		return v, nil
	}

	switch kind {
	case guest.KindList, guest.KindTuple, guest.KindSet:
		anyCT, err := c.compiler.Compile(anySliceType)
		if err != nil {
			return nil, err
		}
		rv, err := c.decodeSequence(h, anyCT, anyCT.Elem, path)
		if err != nil {
			return nil, err
		}
		return rv.Interface(), nil
	}
	return guest.NewObject(c.g, h), nil
}

var anySliceType = reflect.TypeFor[[]any]()

func (c *Converter) mismatch(h ref.Borrowed, path []string, target reflect.Type) error {
	return errors.TypeMismatch(errors.PhaseDecode, path, target.String(), c.g.TypeName(h))
}

// CloseObjects releases the guest references held by rv, a host value
// produced by conversion. It walks slices, arrays, maps and interfaces.
func CloseObjects(rv reflect.Value) {
	if !rv.IsValid() {
		return
	}
	switch rv.Kind() {
	case reflect.Interface:
		if !rv.IsNil() {
			CloseObjects(rv.Elem())
		}
	case reflect.Pointer:
		if rv.Type() == objectType && !rv.IsNil() {
			rv.Interface().(*guest.Object).Close()
		}
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			CloseObjects(rv.Index(i))
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			CloseObjects(iter.Key())
			CloseObjects(iter.Value())
		}
	}
}
