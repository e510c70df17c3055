package guest

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"

	"github.com/wippyai/hostbridge/ref"
)

// None returns a borrowed handle to the None singleton.
func (rt *Runtime) None() ref.Borrowed { return ref.BorrowAddr(rt.none) }

// NewNone returns a new reference to the None singleton.
func (rt *Runtime) NewNone() ref.Owned {
	rt.heap.IncRef(rt.none)
	return ref.NewOwned(rt, rt.none)
}

func (rt *Runtime) NewBool(v bool) ref.Owned { return rt.mustTrack(starlark.Bool(v)) }

func (rt *Runtime) NewInt(v int64) ref.Owned { return rt.mustTrack(starlark.MakeInt64(v)) }

func (rt *Runtime) NewUint(v uint64) ref.Owned { return rt.mustTrack(starlark.MakeUint64(v)) }

func (rt *Runtime) NewBigInt(v *big.Int) ref.Owned { return rt.mustTrack(starlark.MakeBigInt(v)) }

func (rt *Runtime) NewFloat(v float64) ref.Owned { return rt.mustTrack(starlark.Float(v)) }

func (rt *Runtime) NewString(v string) ref.Owned { return rt.mustTrack(starlark.String(v)) }

func (rt *Runtime) NewBytes(v []byte) ref.Owned { return rt.mustTrack(starlark.Bytes(v)) }

// NewList returns a new empty list.
func (rt *Runtime) NewList() ref.Owned { return rt.mustTrack(starlark.NewList(nil)) }

// ListAppend appends the value behind item to list. item stays borrowed.
func (rt *Runtime) ListAppend(list, item ref.Borrowed) error {
	lv, err := rt.valueOf(list)
	if err != nil {
		return err
	}
	l, ok := lv.(*starlark.List)
	if !ok {
		return fmt.Errorf("%w: expected list, got %s", ErrType, lv.Type())
	}
	iv, err := rt.valueOf(item)
	if err != nil {
		return err
	}
	return l.Append(iv)
}

// NewTuple builds a tuple from stolen items. Every item reference is
// consumed whether or not construction succeeds.
func (rt *Runtime) NewTuple(items []ref.Stolen) ref.Owned {
	tuple := make(starlark.Tuple, len(items))
	var failed bool
	for i, s := range items {
		h := s.Adopt()
		v, err := rt.valueOf(h.Borrow())
		h.Release()
		if err != nil {
			failed = true
			continue
		}
		tuple[i] = v
	}
	if failed {
		rt.SetError(fmt.Errorf("%w: tuple item", ErrNull))
		return ref.Owned{}
	}
	return rt.mustTrack(tuple)
}

// NewDict returns a new empty dict.
func (rt *Runtime) NewDict() ref.Owned { return rt.mustTrack(starlark.NewDict(0)) }

// DictSetItem stores value under key. Both stay borrowed.
func (rt *Runtime) DictSetItem(dict, key, value ref.Borrowed) error {
	dv, err := rt.valueOf(dict)
	if err != nil {
		return err
	}
	d, ok := dv.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("%w: expected dict, got %s", ErrType, dv.Type())
	}
	k, err := rt.valueOf(key)
	if err != nil {
		return err
	}
	v, err := rt.valueOf(value)
	if err != nil {
		return err
	}
	return d.SetKey(k, v)
}

// GetItem returns h[key] for mappings and indexable sequences.
func (rt *Runtime) GetItem(h, key ref.Borrowed) (ref.Owned, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return ref.Owned{}, err
	}
	k, err := rt.valueOf(key)
	if err != nil {
		return ref.Owned{}, err
	}

	switch c := v.(type) {
	case starlark.Mapping:
		item, found, err := c.Get(k)
		if err != nil {
			return ref.Owned{}, err
		}
		if !found {
			return ref.Owned{}, fmt.Errorf("key %s not found", k)
		}
		return rt.track(item)
	case starlark.Indexable:
		i, err := starlark.AsInt32(k)
		if err != nil {
			return ref.Owned{}, err
		}
		if i < 0 {
			i += c.Len()
		}
		if i < 0 || i >= c.Len() {
			return ref.Owned{}, fmt.Errorf("index %s out of range", k)
		}
		return rt.track(c.Index(i))
	}
	return ref.Owned{}, fmt.Errorf("%w: %s is not subscriptable", ErrType, v.Type())
}

// Kind returns the runtime kind of the value behind h.
func (rt *Runtime) Kind(h ref.Borrowed) Kind {
	v, err := rt.valueOf(h)
	if err != nil {
		return KindOther
	}
	return kindOf(v)
}

func kindOf(v starlark.Value) Kind {
	switch v.(type) {
	case starlark.NoneType:
		return KindNone
	case starlark.Bool:
		return KindBool
	case starlark.Int:
		return KindInt
	case starlark.Float:
		return KindFloat
	case starlark.String:
		return KindString
	case starlark.Bytes:
		return KindBytes
	case *starlark.List:
		return KindList
	case starlark.Tuple:
		return KindTuple
	case *starlark.Dict:
		return KindDict
	case *starlark.Set:
		return KindSet
	case *Date:
		return KindDate
	case *DateTime:
		return KindDateTime
	case *TimeDelta:
		return KindTimeDelta
	case *TimeZone:
		return KindTimeZone
	case *Foreign:
		return KindForeign
	case *iterator:
		return KindIterator
	case starlark.Callable:
		return KindCallable
	}
	return KindOther
}

// TypeName returns the guest type name of the value behind h.
func (rt *Runtime) TypeName(h ref.Borrowed) string {
	v, err := rt.valueOf(h)
	if err != nil {
		return "<null>"
	}
	return v.Type()
}

func (rt *Runtime) AsBool(h ref.Borrowed) (bool, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return false, err
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool, got %s", ErrType, v.Type())
	}
	return bool(b), nil
}

// AsInt64 reads an int. ErrNotInteger reports the wrong kind and
// ErrOverflow a value outside int64.
func (rt *Runtime) AsInt64(h ref.Borrowed) (int64, error) {
	i, err := rt.asInt(h)
	if err != nil {
		return 0, err
	}
	n, ok := i.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %s does not fit int64", ErrOverflow, i)
	}
	return n, nil
}

// AsUint64 reads a non-negative int.
func (rt *Runtime) AsUint64(h ref.Borrowed) (uint64, error) {
	i, err := rt.asInt(h)
	if err != nil {
		return 0, err
	}
	n, ok := i.Uint64()
	if !ok {
		return 0, fmt.Errorf("%w: %s does not fit uint64", ErrOverflow, i)
	}
	return n, nil
}

func (rt *Runtime) AsBigInt(h ref.Borrowed) (*big.Int, error) {
	i, err := rt.asInt(h)
	if err != nil {
		return nil, err
	}
	return i.BigInt(), nil
}

func (rt *Runtime) asInt(h ref.Borrowed) (starlark.Int, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return starlark.Int{}, err
	}
	i, ok := v.(starlark.Int)
	if !ok {
		return starlark.Int{}, fmt.Errorf("%w: got %s", ErrNotInteger, v.Type())
	}
	return i, nil
}

// AsFloat reads an int or float.
func (rt *Runtime) AsFloat(h ref.Borrowed) (float64, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case starlark.Float:
		return float64(n), nil
	case starlark.Int:
		return float64(n.Float()), nil
	}
	return 0, fmt.Errorf("%w: got %s", ErrNotNumber, v.Type())
}

func (rt *Runtime) AsString(h ref.Borrowed) (string, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return "", err
	}
	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %s", ErrType, v.Type())
	}
	return string(s), nil
}

func (rt *Runtime) AsBytes(h ref.Borrowed) ([]byte, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return nil, err
	}
	b, ok := v.(starlark.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: expected bytes, got %s", ErrType, v.Type())
	}
	return []byte(b), nil
}

// Str returns the guest str() of the value.
func (rt *Runtime) Str(h ref.Borrowed) (string, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return "", err
	}
	if s, ok := starlark.AsString(v); ok {
		return s, nil
	}
	return v.String(), nil
}

// GetAttr returns h.name, or ErrNoAttr.
func (rt *Runtime) GetAttr(h ref.Borrowed, name string) (ref.Owned, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return ref.Owned{}, err
	}
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return ref.Owned{}, fmt.Errorf("%w: %s.%s", ErrNoAttr, v.Type(), name)
	}
	attr, err := ha.Attr(name)
	if err != nil {
		return ref.Owned{}, err
	}
	if attr == nil {
		return ref.Owned{}, fmt.Errorf("%w: %s.%s", ErrNoAttr, v.Type(), name)
	}
	return rt.track(attr)
}

// HasAttr reports whether h.name exists.
func (rt *Runtime) HasAttr(h ref.Borrowed, name string) bool {
	v, err := rt.valueOf(h)
	if err != nil {
		return false
	}
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return false
	}
	attr, err := ha.Attr(name)
	return err == nil && attr != nil
}

var (
	anySliceType = reflect.TypeFor[[]any]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

// LookupHostType reports the Go type that best describes the value
// behind h. Homogeneous lists map to typed slices.
func (rt *Runtime) LookupHostType(h ref.Borrowed) (reflect.Type, bool) {
	v, err := rt.valueOf(h)
	if err != nil {
		return nil, false
	}
	return hostTypeOf(v)
}

func hostTypeOf(v starlark.Value) (reflect.Type, bool) {
	switch x := v.(type) {
	case *Foreign:
		if x.value == nil {
			return x.static, x.static != nil
		}
		return reflect.TypeOf(x.value), true
	case starlark.Bool:
		return reflect.TypeFor[bool](), true
	case starlark.Int:
		return reflect.TypeFor[int](), true
	case starlark.Float:
		return reflect.TypeFor[float64](), true
	case starlark.String:
		return reflect.TypeFor[string](), true
	case starlark.Bytes:
		return reflect.TypeFor[[]byte](), true
	case *DateTime, *Date, starlarktime.Time:
		return timeType, true
	case *TimeDelta, starlarktime.Duration:
		return durationType, true
	case *starlark.List:
		return elemSliceType(x)
	case starlark.Tuple:
		return elemSliceType(x)
	}
	return nil, false
}

func elemSliceType(seq starlark.Indexable) (reflect.Type, bool) {
	var elem reflect.Type
	for i := 0; i < seq.Len(); i++ {
		t, ok := hostTypeOf(seq.Index(i))
		if !ok {
			return anySliceType, true
		}
		if elem == nil {
			elem = t
		} else if elem != t {
			return anySliceType, true
		}
	}
	if elem == nil {
		return anySliceType, true
	}
	return reflect.SliceOf(elem), true
}
