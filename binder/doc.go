// Package binder resolves guest calls against overloaded host functions.
//
// Each overload is a Candidate: a Go function plus a declarative
// Signature listing parameter names, defaults, by-ref and variadic
// parameters. Candidates of one name form an Overloads set owned by a
// Binder:
//
//	b := binder.New(conv)
//	o := b.Define("max",
//	    binder.MustCandidate("max", func(a, b int) int { ... }, binder.Signature{Static: true}),
//	    binder.MustCandidate("max", func(a, b float64) float64 { ... }, binder.Signature{Static: true}),
//	)
//	res, err := o.Call(nil, args, kwargs)
//
// # Ordering
//
// Candidates are tried in ascending precedence score. The score sums the
// parameter scores (exact numeric widths lowest, any highest), plus 3000
// for static and 1 for generic candidates:
//
//	*guest.Object  -1     int64/int  21     string  30
//	time, structs   1     int32      22     bool    40
//	decimal         2     uint8      28     []T     100+T
//	float64         3     int8       29     []any   2500
//	float32         4     ...               any     3000
//
// Equal scores keep the more derived candidate first, then declaration
// order. The sorted list is built once and rebuilt only after Add.
//
// # Selection
//
// Every candidate whose arity fits converts its arguments; conversion
// failures only eliminate that candidate. Among the survivors the one
// consuming the most keywords wins, then the one needing the fewest
// defaults. A tie that needed defaults is an AmbiguousOverload error; a
// tie that needed none goes to the first candidate. When nothing matches,
// generic candidates are closed over the guest arguments' host types and
// resolution runs once more.
//
// # Operators
//
// Operator candidates are static functions named by dunder method. When
// called with one argument fewer than they declare, the instance fills
// the first parameter, or the second for reverse operators. Reverse
// comparisons are never used.
//
// # Invocation
//
// The guest lock is released around the host call unless the candidate
// sets NoAllowThreads. Returned errors and panics become
// HostInvocationFailure; one level of InvocationError is stripped first.
// Results with by-ref outputs are packed into a tuple, except a single
// output of a function without a return value, which is returned alone.
//
// Output parameters take no input. A call that supplies every parameter
// positionally may still pass a placeholder for them, which must convert
// to the output type and is then discarded.
//
// # Ownership
//
// Guest objects converted for the arguments of a successful call, such as
// *guest.Object parameters, belong to the host function from then on; it
// may store them and must Close them when done. Arguments of candidates
// that lose resolution, and of calls that fail, are released by the
// binder. By-ref cells are released once their values have been packed.
package binder
