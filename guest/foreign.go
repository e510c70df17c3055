package guest

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/wippyai/hostbridge/ref"
)

// Foreign is a guest value that wraps a host value without copying it.
// Methods and operators come from the table registered with DefineType.
type Foreign struct {
	rt     *Runtime
	value  any
	static reflect.Type
}

var (
	_ starlark.HasAttrs   = (*Foreign)(nil)
	_ starlark.HasBinary  = (*Foreign)(nil)
	_ starlark.HasUnary   = (*Foreign)(nil)
	_ starlark.Comparable = (*Foreign)(nil)
)

var hashSeed = maphash.MakeSeed()

var binaryMethods = map[syntax.Token]string{
	syntax.PLUS:       "add",
	syntax.MINUS:      "sub",
	syntax.STAR:       "mul",
	syntax.SLASH:      "truediv",
	syntax.SLASHSLASH: "floordiv",
	syntax.PERCENT:    "mod",
	syntax.AMP:        "and",
	syntax.PIPE:       "or",
	syntax.CIRCUMFLEX: "xor",
	syntax.LTLT:       "lshift",
	syntax.GTGT:       "rshift",
}

var unaryMethods = map[syntax.Token]string{
	syntax.MINUS: "__neg__",
	syntax.PLUS:  "__pos__",
	syntax.TILDE: "__invert__",
}

var compareMethods = map[syntax.Token]string{
	syntax.EQL: "__eq__",
	syntax.NEQ: "__ne__",
	syntax.LT:  "__lt__",
	syntax.LE:  "__le__",
	syntax.GT:  "__gt__",
	syntax.GE:  "__ge__",
}

// Value returns the wrapped host value.
func (f *Foreign) Value() any { return f.value }

// StaticType returns the type the value was exposed as.
func (f *Foreign) StaticType() reflect.Type { return f.static }

func (f *Foreign) String() string {
	if s, ok := f.value.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("<%s %v>", f.Type(), f.value)
}

func (f *Foreign) Type() string {
	if f.static == nil {
		return "foreign"
	}
	return f.static.String()
}

func (f *Foreign) Freeze()              {}
func (f *Foreign) Truth() starlark.Bool { return starlark.True }

func (f *Foreign) Hash() (uint32, error) {
	if f.value == nil || !reflect.TypeOf(f.value).Comparable() {
		return 0, fmt.Errorf("unhashable type: %s", f.Type())
	}
	return uint32(maphash.Comparable(hashSeed, f.value)), nil
}

func (f *Foreign) Attr(name string) (starlark.Value, error) {
	fn, ok := f.method(name)
	if !ok {
		return nil, nil
	}
	return f.rt.builtin(name, f, fn), nil
}

func (f *Foreign) AttrNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, table := range f.tables() {
		for name := range table {
			if strings.HasPrefix(name, "__") || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Foreign) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	base, ok := binaryMethods[op]
	if !ok {
		return nil, nil
	}
	name := "__" + base + "__"
	if side == starlark.Right {
		name = "__r" + base + "__"
	}
	fn, ok := f.method(name)
	if !ok {
		return nil, nil
	}
	return f.rt.dispatch(name, fn, f, starlark.Tuple{y}, nil)
}

func (f *Foreign) Unary(op syntax.Token) (starlark.Value, error) {
	name, ok := unaryMethods[op]
	if !ok {
		return nil, nil
	}
	fn, ok := f.method(name)
	if !ok {
		return nil, nil
	}
	return f.rt.dispatch(name, fn, f, nil, nil)
}

func (f *Foreign) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	name, ok := compareMethods[op]
	if !ok {
		return false, fmt.Errorf("unsupported comparison %s", op)
	}
	if fn, ok := f.method(name); ok {
		res, err := f.rt.dispatch(name, fn, f, starlark.Tuple{y}, nil)
		if err != nil {
			return false, err
		}
		return bool(res.Truth()), nil
	}

	other, _ := y.(*Foreign)
	switch op {
	case syntax.EQL, syntax.NEQ:
		eq := other != nil && sameValue(f.value, other.value)
		return eq == (op == syntax.EQL), nil
	}
	return false, fmt.Errorf("%s %s %s not supported", f.Type(), op, y.Type())
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func (f *Foreign) tables() []map[string]Callable {
	var out []map[string]Callable
	if f.value != nil {
		if t, ok := f.rt.types[reflect.TypeOf(f.value)]; ok {
			out = append(out, t)
		}
	}
	if f.static != nil && (f.value == nil || f.static != reflect.TypeOf(f.value)) {
		if t, ok := f.rt.types[f.static]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (f *Foreign) method(name string) (Callable, bool) {
	for _, table := range f.tables() {
		if fn, ok := table[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Wrap exposes v to guest code. static is the type it is exposed as; nil
// means the dynamic type of v.
func (rt *Runtime) Wrap(v any, static reflect.Type) ref.Owned {
	if static == nil {
		static = reflect.TypeOf(v)
	}
	return rt.mustTrack(&Foreign{rt: rt, value: v, static: static})
}

// TryUnwrap returns the host value behind a wrapped handle.
func (rt *Runtime) TryUnwrap(h ref.Borrowed) (any, bool) {
	v, err := rt.valueOf(h)
	if err != nil {
		return nil, false
	}
	f, ok := v.(*Foreign)
	if !ok {
		return nil, false
	}
	return f.value, true
}

// builtin creates a guest builtin that forwards calls to fn. A non-nil
// self is passed to fn as the bound instance.
func (rt *Runtime) builtin(name string, self starlark.Value, fn Callable) *starlark.Builtin {
	b := starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return rt.dispatch(b.Name(), fn, b.Receiver(), args, kwargs)
	})
	if self != nil {
		b = b.BindReceiver(self)
	}
	return b
}

// dispatch moves Starlark arguments into the heap, calls fn with borrowed
// handles and turns a null result into a Starlark error.
func (rt *Runtime) dispatch(name string, fn Callable, recv starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	owned := make([]ref.Owned, 0, len(args)+len(kwargs)+1)
	defer func() { ref.ReleaseAll(owned...) }()

	hold := func(v starlark.Value) (ref.Borrowed, error) {
		h, err := rt.track(v)
		if err != nil {
			return ref.Borrowed{}, err
		}
		owned = append(owned, h)
		return h.Borrow(), nil
	}

	var self ref.Borrowed
	if recv != nil {
		var err error
		if self, err = hold(recv); err != nil {
			return nil, err
		}
	}

	pos := make([]ref.Borrowed, len(args))
	for i, a := range args {
		b, err := hold(a)
		if err != nil {
			return nil, err
		}
		pos[i] = b
	}

	var kw map[string]ref.Borrowed
	if len(kwargs) > 0 {
		kw = make(map[string]ref.Borrowed, len(kwargs))
		for _, pair := range kwargs {
			key, _ := starlark.AsString(pair[0])
			b, err := hold(pair[1])
			if err != nil {
				return nil, err
			}
			kw[key] = b
		}
	}

	rt.pending = nil
	res := fn(self, pos, kw)
	if res.IsNull() {
		if err := rt.Fetch(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s returned no value without setting an error", name)
	}
	defer res.Release()

	return rt.valueOf(res.Borrow())
}
