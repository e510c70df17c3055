package guest

import (
	"errors"
	"math/big"
	"reflect"

	"github.com/wippyai/hostbridge/ref"
)

var (
	ErrClosed      = errors.New("guest runtime closed")
	ErrNull        = errors.New("null or stale guest handle")
	ErrType        = errors.New("wrong guest type")
	ErrNotInteger  = errors.New("guest value is not an integer")
	ErrNotNumber   = errors.New("guest value is not a number")
	ErrOverflow    = errors.New("guest integer out of range")
	ErrNotIterable = errors.New("guest value is not iterable")
	ErrNoAttr      = errors.New("guest value has no such attribute")
)

// Kind is the runtime kind of a guest value.
type Kind uint8

const (
	KindOther Kind = iota
	KindNone
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindTuple
	KindDict
	KindSet
	KindDate
	KindDateTime
	KindTimeDelta
	KindTimeZone
	KindForeign
	KindCallable
	KindIterator
)

var kindNames = [...]string{
	KindOther:     "other",
	KindNone:      "none",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindBytes:     "bytes",
	KindList:      "list",
	KindTuple:     "tuple",
	KindDict:      "dict",
	KindSet:       "set",
	KindDate:      "date",
	KindDateTime:  "datetime",
	KindTimeDelta: "timedelta",
	KindTimeZone:  "timezone",
	KindForeign:   "foreign",
	KindCallable:  "callable",
	KindIterator:  "iterator",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Offset is a fixed UTC offset carried by a guest timezone object.
type Offset struct {
	Hours   int
	Minutes int
}

// DateTimeFields are the structured constructor arguments of a guest datetime.
// A nil Offset builds a naive value.
type DateTimeFields struct {
	Offset      *Offset
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Microsecond int
}

// Callable is a host function exposed to guest code. Arguments are borrowed
// for the duration of the call. It returns an owned result, or a null
// handle after setting the error indicator.
type Callable func(self ref.Borrowed, args []ref.Borrowed, kwargs map[string]ref.Borrowed) ref.Owned

// API is the function table the converter and binder use to reach the
// guest runtime. Every method requires the guest lock to be held.
type API interface {
	ref.Counter

	// NewRef takes a new reference on a borrowed handle.
	NewRef(h ref.Borrowed) ref.Owned
	// RefCount returns the reference count of h.
	RefCount(h ref.Borrowed) int
	// Live returns the number of live heap objects.
	Live() int

	None() ref.Borrowed
	NewNone() ref.Owned
	Kind(h ref.Borrowed) Kind
	TypeName(h ref.Borrowed) string

	NewBool(v bool) ref.Owned
	NewInt(v int64) ref.Owned
	NewUint(v uint64) ref.Owned
	NewBigInt(v *big.Int) ref.Owned
	NewFloat(v float64) ref.Owned
	NewString(v string) ref.Owned
	NewBytes(v []byte) ref.Owned

	NewList() ref.Owned
	ListAppend(list, item ref.Borrowed) error
	// NewTuple steals every item, including on failure.
	NewTuple(items []ref.Stolen) ref.Owned
	NewDict() ref.Owned
	DictSetItem(dict, key, value ref.Borrowed) error
	GetItem(h, key ref.Borrowed) (ref.Owned, error)

	NewDateTime(f DateTimeFields) (ref.Owned, error)
	NewTimeDelta(days, seconds, microseconds int64) (ref.Owned, error)

	// Wrap exposes a host value to guest code without copying it.
	Wrap(v any, static reflect.Type) ref.Owned
	// TryUnwrap returns the host value behind a wrapped handle.
	TryUnwrap(h ref.Borrowed) (any, bool)
	// LookupHostType reports the Go type that best describes a guest value.
	LookupHostType(h ref.Borrowed) (reflect.Type, bool)

	AsBool(h ref.Borrowed) (bool, error)
	AsInt64(h ref.Borrowed) (int64, error)
	AsUint64(h ref.Borrowed) (uint64, error)
	AsBigInt(h ref.Borrowed) (*big.Int, error)
	AsFloat(h ref.Borrowed) (float64, error)
	AsString(h ref.Borrowed) (string, error)
	AsBytes(h ref.Borrowed) ([]byte, error)
	Str(h ref.Borrowed) (string, error)

	GetAttr(h ref.Borrowed, name string) (ref.Owned, error)
	HasAttr(h ref.Borrowed, name string) bool

	Iter(h ref.Borrowed) (ref.Owned, error)
	// Next returns the next element, or ok=false when the iterator is exhausted.
	Next(it ref.Borrowed) (item ref.Owned, ok bool, err error)
	// Len returns the size of h, or ok=false if h has no size.
	Len(h ref.Borrowed) (int, bool)
	// IsSequence reports whether h is an ordered non-string collection.
	IsSequence(h ref.Borrowed) bool

	Call(fn ref.Borrowed, args []ref.Borrowed, kwargs map[string]ref.Borrowed) (ref.Owned, error)

	SetError(err error)
	Fetch() error
	Occurred() bool

	// AllowThreads releases the guest lock and returns the function that
	// reacquires it.
	AllowThreads() (restore func())
}
