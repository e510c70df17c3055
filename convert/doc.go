// Package convert moves values between Go and the guest runtime.
//
// A Converter pairs a type Compiler with a Codecs registry and talks to
// the guest through the guest.API table. It holds no per-call state, but
// every call expects the guest lock to be held.
//
// # Type Compilation
//
// Compiler.Compile classifies a Go type once and caches the descriptor:
//
//	Go type                 Kind        Guest value
//	─────────────────────────────────────────────────────
//	bool                    Bool        bool
//	int..int64, uint..      Int*/Uint*  int
//	float32/float64         Float*      float
//	string                  String      string
//	[]byte                  Bytes       bytes
//	apd.Decimal             Decimal     float (int/float/str on input)
//	time.Time               Time        datetime.datetime
//	time.Duration           Duration    datetime.timedelta
//	[]T                     Slice       list
//	[N]T                    Array       wrapped
//	map[K]V                 Map         wrapped (dict on input)
//	*T                      Nullable    None or T
//	any                     Any         by guest kind
//	*guest.Object           Handle      the guest value itself
//	registered enums        Enum        wrapped (int on input)
//	anything else           Opaque      wrapped
//
// Recursive types resolve to a single descriptor node.
//
// # Host to Guest
//
// ToGuest consults registered encoders first for non-primitive types, then
// the built-in rules above. A non-empty interface as the declared type
// makes the value cross wrapped and typed as that interface. Slices that
// implement ChangeNotifier also cross wrapped so the guest sees the live
// collection.
//
// # Guest to Host
//
// ToHost takes a borrowed handle and never consumes it. Wrapped host
// values are returned as is when assignable, otherwise through their
// Convertible implementation. Numbers are range checked against the target
// width:
//
//	[decode] range_overflow at [2]: value 1000 out of range for uint8
//
// Sequences convert element by element and fail as a whole on the first
// bad element, closing any guest references collected so far.
//
// # Time Zones
//
// Naive guest datetimes decode to the Unspecified location, aware ones to
// UTC when the offset is zero and to a fixed zone otherwise. Encoding
// rounds to microseconds.
package convert
