package binder

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/ref"
)

// InvocationError wraps an error on its way out of a host call. The
// binder strips one level of it before reporting.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string { return "invocation failed: " + e.Err.Error() }

func (e *InvocationError) Unwrap() error { return e.Err }

// PanicError is the cause reported for a host function that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Invoke calls the best matching candidate and returns its packed guest
// result. On failure it sets the guest error indicator and returns a null
// handle.
func (o *Overloads) Invoke(inst any, args []ref.Borrowed, kwargs map[string]ref.Borrowed) ref.Owned {
	h, err := o.Call(inst, args, kwargs)
	if err != nil {
		o.b.guest().SetError(err)
		return ref.Owned{}
	}
	return h
}

// Call binds, invokes and packs the result. Conversion precedes the host
// call, which precedes result conversion. Guest objects converted for a
// successful call belong to the host function, which must Close them.
func (o *Overloads) Call(inst any, args []ref.Borrowed, kwargs map[string]ref.Borrowed) (ref.Owned, error) {
	bd, err := o.Bind(inst, args, kwargs)
	if err != nil {
		return ref.Owned{}, err
	}

	results, err := o.b.call(bd)
	if err != nil {
		bd.Close()
		return ref.Owned{}, errors.HostInvocation(o.name, unwrapInvocation(err))
	}
	defer bd.closeCells()
	return o.b.pack(bd, results)
}

// call runs the host function. The guest lock is released around it
// unless disabled, and is reacquired on every path, panics included.
func (b *Binder) call(bd *Binding) (results []reflect.Value, err error) {
	c := bd.Candidate
	in := make([]reflect.Value, 0, len(bd.Args)+1)
	if bd.Target.IsValid() {
		in = append(in, bd.Target)
	}
	in = append(in, bd.Args...)

	if b.allowThreads && !c.sig.NoAllowThreads {
		restore := b.guest().AllowThreads()
		defer restore()
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("host function panicked",
				zap.String("candidate", c.String()),
				zap.Any("panic", r))
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &PanicError{Value: r}
			}
		}
	}()

	if c.fn.Type().IsVariadic() {
		results = c.fn.CallSlice(in)
	} else {
		results = c.fn.Call(in)
	}

	if c.hasErr {
		last := results[len(results)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	return results, nil
}

func unwrapInvocation(err error) error {
	if ie, ok := err.(*InvocationError); ok && ie.Err != nil {
		return ie.Err
	}
	return err
}

// pack converts the return value and by-ref outputs to a guest value.
// Without outputs the return value is returned as is. A single output of
// a function without a return value is returned unwrapped. Otherwise the
// result is a tuple of the return value, if any, and each output in
// declaration order.
func (b *Binder) pack(bd *Binding, results []reflect.Value) (ref.Owned, error) {
	c := bd.Candidate
	g := b.guest()

	var ret reflect.Value
	if c.result != nil {
		ret = results[0]
	}

	switch {
	case len(bd.Outs) == 0 && c.result == nil:
		return g.NewNone(), nil
	case len(bd.Outs) == 0:
		return b.conv.ToGuest(ret.Interface(), c.result)
	case len(bd.Outs) == 1 && c.result == nil:
		out := bd.Args[bd.Outs[0]].Elem()
		return b.conv.ToGuest(out.Interface(), out.Type())
	}

	items := make([]ref.Owned, 0, len(bd.Outs)+1)
	fail := func(err error) (ref.Owned, error) {
		ref.ReleaseAll(items...)
		return ref.Owned{}, err
	}
	if c.result != nil {
		h, err := b.conv.ToGuest(ret.Interface(), c.result)
		if err != nil {
			return fail(err)
		}
		items = append(items, h)
	}
	for _, i := range bd.Outs {
		out := bd.Args[i].Elem()
		h, err := b.conv.ToGuest(out.Interface(), out.Type())
		if err != nil {
			return fail(err)
		}
		items = append(items, h)
	}

	stolen := make([]ref.Stolen, len(items))
	for i, h := range items {
		stolen[i] = h.Steal()
	}
	tuple := g.NewTuple(stolen)
	if tuple.IsNull() {
		return ref.Owned{}, errors.Unsupported(errors.PhaseInvoke, "build result tuple for "+c.name)
	}
	return tuple, nil
}
