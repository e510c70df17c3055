package guest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/ref"
)

// Runtime is a Starlark interpreter whose values live in a refcounted heap.
// One global lock gates all guest-visible state: Exec and Eval take it,
// and every API method expects it to be held.
type Runtime struct {
	heap        *ref.Table
	predeclared starlark.StringDict
	types       map[reflect.Type]map[string]Callable
	ids         map[starlark.Value]ref.Addr
	opts        *syntax.FileOptions
	print       func(msg string)
	pending     error
	maxSteps    uint64
	none        ref.Addr
	mu          sync.Mutex
	idsMu       sync.Mutex
	locked      atomic.Bool
	closed      atomic.Bool
}

var _ API = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxSteps bounds the number of execution steps of each Exec or Eval.
// Zero means unbounded.
func WithMaxSteps(n uint64) Option {
	return func(rt *Runtime) { rt.maxSteps = n }
}

// WithPrint routes the guest print builtin.
func WithPrint(fn func(msg string)) Option {
	return func(rt *Runtime) { rt.print = fn }
}

// New creates a guest runtime with the datetime and time modules predeclared.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		heap:  ref.NewTable(),
		types: make(map[reflect.Type]map[string]Callable),
		ids:   make(map[starlark.Value]ref.Addr),
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
		},
	}
	for _, opt := range opts {
		opt(rt)
	}

	rt.none, _ = rt.heap.Immortal(starlark.None)
	rt.heap.Subscribe(rt)

	rt.predeclared = starlark.StringDict{
		"datetime": datetimeModule,
		"time":     starlarktime.Module,
	}
	return rt
}

// OnRefEvent keeps the identity index in sync with the heap.
func (rt *Runtime) OnRefEvent(e ref.Event) {
	if e.Type != ref.EventFreed {
		return
	}
	v, ok := e.Value.(starlark.Value)
	if !ok || !interned(v) {
		return
	}
	rt.idsMu.Lock()
	if rt.ids[v] == e.Addr {
		delete(rt.ids, v)
	}
	rt.idsMu.Unlock()
}

// Lock acquires the guest lock.
func (rt *Runtime) Lock() {
	rt.mu.Lock()
	rt.locked.Store(true)
}

// Unlock releases the guest lock.
func (rt *Runtime) Unlock() {
	rt.locked.Store(false)
	rt.mu.Unlock()
}

// AllowThreads releases the guest lock around a host call. The returned
// function reacquires it. If the lock is not held both are no-ops.
func (rt *Runtime) AllowThreads() (restore func()) {
	if !rt.locked.Load() {
		return func() {}
	}
	rt.Unlock()
	return rt.Lock
}

// Close frees the heap. Handles still held become stale.
func (rt *Runtime) Close() error {
	if !rt.closed.CompareAndSwap(false, true) {
		return nil
	}
	return rt.heap.Close()
}

// Define installs a host function as a predeclared guest global.
func (rt *Runtime) Define(name string, fn Callable) {
	rt.predeclared[name] = rt.builtin(name, nil, fn)
}

// DefineModule installs a module whose members are host functions.
// Calling it again for the same module adds members.
func (rt *Runtime) DefineModule(name string, members map[string]Callable) {
	mod, ok := rt.predeclared[name].(*starlarkstruct.Module)
	if !ok {
		mod = &starlarkstruct.Module{Name: name, Members: starlark.StringDict{}}
		rt.predeclared[name] = mod
	}
	for member, fn := range members {
		mod.Members[member] = rt.builtin(name+"."+member, nil, fn)
	}
}

// DefineType attaches methods to wrapped host values of type t. Methods
// named after operator protocols (__add__, __radd__, __neg__, __eq__, ...)
// implement the corresponding guest operators.
func (rt *Runtime) DefineType(t reflect.Type, methods map[string]Callable) {
	table := rt.types[t]
	if table == nil {
		table = make(map[string]Callable, len(methods))
		rt.types[t] = table
	}
	for name, fn := range methods {
		table[name] = fn
	}
}

// SetGlobal binds a predeclared global to the value behind h.
func (rt *Runtime) SetGlobal(name string, h ref.Borrowed) error {
	v, err := rt.valueOf(h)
	if err != nil {
		return err
	}
	rt.predeclared[name] = v
	return nil
}

// Globals are owned handles to the globals of an executed script.
type Globals map[string]ref.Owned

// Release releases every global.
func (g Globals) Release() {
	for _, h := range g {
		h.Release()
	}
}

// Exec runs a script and returns its globals. It takes the guest lock.
func (rt *Runtime) Exec(ctx context.Context, filename string, src any) (Globals, error) {
	rt.Lock()
	defer rt.Unlock()

	if rt.closed.Load() {
		return nil, ErrClosed
	}

	Logger().Debug("exec", zap.String("file", filename))

	thread, stop := rt.newThread(ctx, filename)
	defer stop()

	globals, err := starlark.ExecFileOptions(rt.opts, thread, filename, src, rt.predeclared)
	if err != nil {
		return nil, err
	}

	out := make(Globals, len(globals))
	for name, v := range globals {
		h, err := rt.track(v)
		if err != nil {
			out.Release()
			return nil, err
		}
		out[name] = h
	}
	return out, nil
}

// Eval evaluates an expression and returns an owned handle to its value.
// It takes the guest lock.
func (rt *Runtime) Eval(ctx context.Context, expr string) (ref.Owned, error) {
	rt.Lock()
	defer rt.Unlock()

	if rt.closed.Load() {
		return ref.Owned{}, ErrClosed
	}

	thread, stop := rt.newThread(ctx, "eval")
	defer stop()

	v, err := starlark.EvalOptions(rt.opts, thread, "<expr>", expr, rt.predeclared)
	if err != nil {
		return ref.Owned{}, err
	}
	return rt.track(v)
}

// Call invokes a guest callable. The guest lock must be held.
func (rt *Runtime) Call(fn ref.Borrowed, args []ref.Borrowed, kwargs map[string]ref.Borrowed) (ref.Owned, error) {
	callee, err := rt.valueOf(fn)
	if err != nil {
		return ref.Owned{}, err
	}

	pos := make(starlark.Tuple, len(args))
	for i, a := range args {
		if pos[i], err = rt.valueOf(a); err != nil {
			return ref.Owned{}, err
		}
	}

	var kw []starlark.Tuple
	for name, a := range kwargs {
		v, err := rt.valueOf(a)
		if err != nil {
			return ref.Owned{}, err
		}
		kw = append(kw, starlark.Tuple{starlark.String(name), v})
	}

	thread, stop := rt.newThread(context.Background(), "call")
	defer stop()

	res, err := starlark.Call(thread, callee, pos, kw)
	if err != nil {
		return ref.Owned{}, err
	}
	return rt.track(res)
}

func (rt *Runtime) newThread(ctx context.Context, name string) (*starlark.Thread, func()) {
	thread := &starlark.Thread{Name: name}
	if rt.print != nil {
		thread.Print = func(_ *starlark.Thread, msg string) { rt.print(msg) }
	}
	if rt.maxSteps > 0 {
		thread.SetMaxExecutionSteps(rt.maxSteps)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	return thread, func() { close(done) }
}

// track returns an owned handle for a Starlark value. Mutable values keep
// one heap slot for their whole lifetime so identity survives round trips.
func (rt *Runtime) track(v starlark.Value) (ref.Owned, error) {
	if v == nil || v == starlark.None {
		rt.heap.IncRef(rt.none)
		return ref.NewOwned(rt, rt.none), nil
	}

	if interned(v) {
		rt.idsMu.Lock()
		addr, ok := rt.ids[v]
		rt.idsMu.Unlock()
		if ok && rt.heap.RefCount(addr) > 0 {
			rt.heap.IncRef(addr)
			return ref.NewOwned(rt, addr), nil
		}
	}

	addr, err := rt.heap.Alloc(v)
	if err != nil {
		Logger().Debug("heap alloc failed", zap.String("type", v.Type()), zap.Error(err))
		return ref.Owned{}, ErrClosed
	}

	if interned(v) {
		rt.idsMu.Lock()
		rt.ids[v] = addr
		rt.idsMu.Unlock()
	}
	return ref.NewOwned(rt, addr), nil
}

// mustTrack is track for constructors whose only failure is a closed heap.
func (rt *Runtime) mustTrack(v starlark.Value) ref.Owned {
	h, _ := rt.track(v)
	return h
}

func (rt *Runtime) valueOf(h ref.Borrowed) (starlark.Value, error) {
	v, ok := rt.heap.Get(h.Addr())
	if !ok {
		return nil, ErrNull
	}
	sv, ok := v.(starlark.Value)
	if !ok {
		return nil, fmt.Errorf("%w: heap slot %d holds %T", ErrType, h.Addr(), v)
	}
	return sv, nil
}

func interned(v starlark.Value) bool {
	switch v.(type) {
	case *starlark.List, *starlark.Dict, *starlark.Set, *Foreign:
		return true
	}
	return false
}

// IncRef adds one reference to the object at addr.
func (rt *Runtime) IncRef(addr ref.Addr) { rt.heap.IncRef(addr) }

// DecRef drops one reference from the object at addr.
func (rt *Runtime) DecRef(addr ref.Addr) { rt.heap.DecRef(addr) }

// NewRef takes a new reference on h.
func (rt *Runtime) NewRef(h ref.Borrowed) ref.Owned { return ref.ToOwned(rt, h) }

// RefCount returns the reference count of h.
func (rt *Runtime) RefCount(h ref.Borrowed) int { return rt.heap.RefCount(h.Addr()) }

// Live returns the number of live heap objects, including the None singleton.
func (rt *Runtime) Live() int { return rt.heap.Len() }

// SetError sets the error indicator. A later Fetch returns and clears it.
func (rt *Runtime) SetError(err error) { rt.pending = err }

// Fetch returns and clears the error indicator.
func (rt *Runtime) Fetch() error {
	err := rt.pending
	rt.pending = nil
	return err
}

// Occurred reports whether the error indicator is set.
func (rt *Runtime) Occurred() bool { return rt.pending != nil }
