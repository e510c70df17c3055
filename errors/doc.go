// Package errors provides structured error types for the host bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: element path, Go/guest type names, and cause chain.
//
// The conversion and binding failure taxonomy maps onto kinds:
//
//	KindTypeMismatch        - guest value of the wrong kind for the target
//	KindRangeOverflow       - right kind, does not fit the host width
//	KindInvalidEnum         - integer is not a defined member of a non-flags enum
//	KindAmbiguousOverload   - several candidates tie and defaults were needed
//	KindHostInvocation      - the host function returned an error or panicked
//	KindResolutionExhausted - no candidate accepted the arguments (NoMatchError)
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("args", "0").
//		HostType("int32").
//		GuestType("string").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "int32", "string")
//	err := errors.RangeOverflow(errors.PhaseDecode, path, 1000, "uint8")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
