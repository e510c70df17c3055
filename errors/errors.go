package errors

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile Phase = "compile" // type descriptor compilation
	PhaseEncode  Phase = "encode"  // Go to guest
	PhaseDecode  Phase = "decode"  // guest to Go
	PhaseBind    Phase = "bind"    // overload resolution
	PhaseInvoke  Phase = "invoke"  // host call and result packing
	PhaseHost    Phase = "host"    // host function registration
	PhaseGuest   Phase = "guest"   // guest runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch        Kind = "type_mismatch"
	KindRangeOverflow       Kind = "range_overflow"
	KindInvalidEnum         Kind = "invalid_enum"
	KindAmbiguousOverload   Kind = "ambiguous_overload"
	KindHostInvocation      Kind = "host_invocation"
	KindResolutionExhausted Kind = "resolution_exhausted"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindUnsupported         Kind = "unsupported"
	KindRegistration        Kind = "registration"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	HostType  string
	GuestType string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HostType != "" || e.GuestType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.GuestType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.HostType)
			b.WriteString(", guest type ")
			b.WriteString(e.GuestType)
		} else if e.HostType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("guest type ")
			b.WriteString(e.GuestType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.GuestType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the outermost bridge error in err's chain.
// A *NoMatchError reports KindResolutionExhausted rather than the kinds of
// the attempts it aggregates.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind, true
		case *NoMatchError:
			return KindResolutionExhausted, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// IsKind reports whether err's chain holds an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the Go type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// GuestType sets the guest type name
func (b *Builder) GuestType(t string) *Builder {
	b.err.GuestType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, hostType, guestType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		HostType:  hostType,
		GuestType: guestType,
	}
}

// RangeOverflow creates an error for a value of the right kind that does
// not fit the host width.
func RangeOverflow(phase Phase, path []string, value any, hostType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindRangeOverflow,
		Path:     path,
		HostType: hostType,
		Detail:   fmt.Sprintf("value %v overflows %s", value, hostType),
		Value:    value,
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidEnum,
		Path:     path,
		HostType: enumType,
		Detail:   fmt.Sprintf("invalid enumeration value %v for %s", value, enumType),
		Value:    value,
	}
}

// Ambiguous creates an ambiguous overload error listing every tied candidate
func Ambiguous(method string, candidates []string) *Error {
	var b strings.Builder
	b.WriteString("not all overloads could be resolved for ")
	b.WriteString(method)
	b.WriteString(":")
	for _, c := range candidates {
		b.WriteString("\n  - ")
		b.WriteString(c)
	}
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindAmbiguousOverload,
		Detail: b.String(),
		Value:  candidates,
	}
}

// HostInvocation wraps an error raised by a host function
func HostInvocation(method string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindHostInvocation,
		Detail: method,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(phase Phase, namespace, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", qualify(namespace, name)),
		Cause:  cause,
	}
}

// Attempt records one candidate that was tried and why it was rejected
type Attempt struct {
	Reason    error
	Candidate string
}

// NoMatchError is returned when no overload accepts the call arguments.
// It carries every attempted candidate and the reason it was rejected.
type NoMatchError struct {
	Method   string
	ArgTypes []string
	Attempts []Attempt
}

// NewNoMatchError creates a resolution failure for method called with
// arguments of the given guest types.
func NewNoMatchError(method string, argTypes []string) *NoMatchError {
	return &NoMatchError{
		Method:   method,
		ArgTypes: argTypes,
	}
}

// Add records a rejected candidate
func (e *NoMatchError) Add(candidate string, reason error) {
	e.Attempts = append(e.Attempts, Attempt{Candidate: candidate, Reason: reason})
}

// Err aggregates every rejection reason into a single error
func (e *NoMatchError) Err() error {
	var err error
	for _, a := range e.Attempts {
		err = multierr.Append(err, a.Reason)
	}
	return err
}

func (e *NoMatchError) Error() string {
	var b strings.Builder
	b.WriteString("[bind] resolution_exhausted: No method matches given arguments for ")
	b.WriteString(e.Method)
	b.WriteString(": (")
	b.WriteString(strings.Join(e.ArgTypes, ", "))
	b.WriteByte(')')

	if len(e.Attempts) == 0 {
		return b.String()
	}

	// Group reasons by candidate for cleaner output
	byCand := make(map[string][]string)
	var order []string
	for _, a := range e.Attempts {
		if _, exists := byCand[a.Candidate]; !exists {
			order = append(order, a.Candidate)
		}
		reason := "rejected"
		if a.Reason != nil {
			reason = a.Reason.Error()
		}
		byCand[a.Candidate] = append(byCand[a.Candidate], reason)
	}

	for _, c := range order {
		b.WriteString("\n  ")
		b.WriteString(c)
		b.WriteByte(':')
		for _, r := range byCand[c] {
			b.WriteString("\n    - ")
			b.WriteString(r)
		}
	}

	return b.String()
}

// Unwrap exposes every rejection reason to errors.Is/As
func (e *NoMatchError) Unwrap() []error {
	return multierr.Errors(e.Err())
}

// Is reports whether target matches this error type
func (e *NoMatchError) Is(target error) bool {
	if _, ok := target.(*NoMatchError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseBind && t.Kind == KindResolutionExhausted
	}
	return false
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
