// Package guest embeds the Starlark interpreter as the guest runtime of
// the bridge.
//
// Every guest value handed to host code lives in a reference-counted heap
// (package ref) and is addressed by a handle. Host code receives borrowed
// handles as arguments and returns owned ones:
//
//	rt := guest.New()
//	defer rt.Close()
//
//	rt.Define("greet", func(_ ref.Borrowed, args []ref.Borrowed, _ map[string]ref.Borrowed) ref.Owned {
//	    name, err := rt.AsString(args[0])
//	    if err != nil {
//	        rt.SetError(err)
//	        return ref.Owned{}
//	    }
//	    return rt.NewString("hello " + name)
//	})
//
//	h, err := rt.Eval(ctx, `greet("world")`)
//
// # Global Lock
//
// Exec and Eval hold the runtime's global lock while guest code runs.
// All other methods of API assume it is held. AllowThreads releases it
// for the duration of a long host call.
//
// # Error Indicator
//
// A Callable that fails returns a null handle after SetError. The runtime
// fetches the pending error and raises it in guest code.
//
// # Host Values
//
// Wrap exposes a host value without copying it. Methods and operators
// registered for its type with DefineType are visible from scripts;
// operator methods use the dunder names (__add__, __radd__, __neg__, __eq__).
//
// The predeclared datetime module provides datetime, date, timedelta and
// timezone values with fixed offsets.
package guest
