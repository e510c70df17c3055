package guest

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/wippyai/hostbridge/ref"
)

// iterator is a guest iterator object. The underlying Starlark iterator
// is finished when the last reference is released.
type iterator struct {
	it  starlark.Iterator
	src starlark.Value
}

var (
	_ starlark.Value = (*iterator)(nil)
	_ ref.Dropper    = (*iterator)(nil)
)

func (i *iterator) String() string        { return fmt.Sprintf("<iterator over %s>", i.src.Type()) }
func (i *iterator) Type() string          { return "iterator" }
func (i *iterator) Freeze()               {}
func (i *iterator) Truth() starlark.Bool  { return starlark.True }
func (i *iterator) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: iterator") }

func (i *iterator) Drop() {
	if i.it != nil {
		i.it.Done()
		i.it = nil
	}
}

// Iter returns an iterator over h, or ErrNotIterable.
func (rt *Runtime) Iter(h ref.Borrowed) (ref.Owned, error) {
	v, err := rt.valueOf(h)
	if err != nil {
		return ref.Owned{}, err
	}
	it := starlark.Iterate(v)
	if it == nil {
		return ref.Owned{}, fmt.Errorf("%w: %s", ErrNotIterable, v.Type())
	}
	owned, err := rt.track(&iterator{it: it, src: v})
	if err != nil {
		it.Done()
		return ref.Owned{}, err
	}
	return owned, nil
}

// Next advances the iterator. ok is false once it is exhausted.
func (rt *Runtime) Next(it ref.Borrowed) (ref.Owned, bool, error) {
	v, err := rt.valueOf(it)
	if err != nil {
		return ref.Owned{}, false, err
	}
	iter, ok := v.(*iterator)
	if !ok {
		return ref.Owned{}, false, fmt.Errorf("%w: expected iterator, got %s", ErrType, v.Type())
	}
	if iter.it == nil {
		return ref.Owned{}, false, nil
	}

	var x starlark.Value
	if !iter.it.Next(&x) {
		iter.Drop()
		return ref.Owned{}, false, nil
	}
	item, err := rt.track(x)
	if err != nil {
		return ref.Owned{}, false, err
	}
	return item, true, nil
}

// Len returns the size of h when the value supports it.
func (rt *Runtime) Len(h ref.Borrowed) (int, bool) {
	v, err := rt.valueOf(h)
	if err != nil {
		return 0, false
	}
	n := starlark.Len(v)
	return n, n >= 0
}

// IsSequence reports whether h is a list, tuple or set.
func (rt *Runtime) IsSequence(h ref.Borrowed) bool {
	v, err := rt.valueOf(h)
	if err != nil {
		return false
	}
	switch v.(type) {
	case starlark.String, starlark.Bytes:
		return false
	}
	_, ok := v.(starlark.Sequence)
	return ok
}
