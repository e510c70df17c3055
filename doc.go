// Package hostbridge exposes Go functions and values to an embedded
// Starlark interpreter and moves values between the two.
//
// The library is organized into several packages with distinct responsibilities:
//
//	hostbridge/          Root package (documentation only)
//	├── runtime/         High-level API: registration, Exec and Eval
//	├── binder/          Overload candidates, resolution and invocation
//	├── convert/         Value conversion between Go and guest values
//	├── guest/           Starlark interpreter behind a refcounted heap
//	├── ref/             Borrowed, Owned and Stolen handles and the heap table
//	├── errors/          Structured error types for debugging
//	└── cmd/bridge/      Command line runner with an interactive mode
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	rt.RegisterFunc("", "greet", func(name string) string {
//	    return "Hello, " + name
//	})
//
//	result, err := rt.Eval(ctx, `greet("World")`, nil)
//	fmt.Println(result) // Hello, World
//
// # Ownership
//
// Every guest object reached from Go is held through a ref handle. A
// Borrowed handle is a view that must not outlive its owner, an Owned
// handle holds exactly one reference and releases it once, and a Stolen
// handle transfers that reference into a guest constructor. Converters
// and binders take borrowed arguments and return owned results.
//
// # Overloads
//
// Several Go functions may share one guest name. Candidates are sorted
// once by a precedence score so that more specific parameter types are
// tried first:
//
//	f(int)     tried before f(string), tried before f(any)
//
// Keyword arguments, defaults, variadic tails, by-ref outputs, operators
// and generic candidates are supported. See package binder.
//
// # Thread Safety
//
// One lock guards each guest interpreter. Exec and Eval take it, and host
// functions run with it released so that other goroutines may use the
// interpreter while Go code blocks.
package hostbridge
