package types

type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUintptr
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindDecimal
	KindTime
	KindDuration
	KindEnum
	KindNullable
	KindSlice
	KindArray
	KindMap
	KindAny
	KindInterface
	KindHandle
	KindOpaque
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindBool:      "bool",
	KindInt:       "int",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUint:      "uint",
	KindUint8:     "uint8",
	KindUint16:    "uint16",
	KindUint32:    "uint32",
	KindUint64:    "uint64",
	KindUintptr:   "uintptr",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindString:    "string",
	KindBytes:     "bytes",
	KindDecimal:   "decimal",
	KindTime:      "time",
	KindDuration:  "duration",
	KindEnum:      "enum",
	KindNullable:  "nullable",
	KindSlice:     "slice",
	KindArray:     "array",
	KindMap:       "map",
	KindAny:       "any",
	KindInterface: "interface",
	KindHandle:    "handle",
	KindOpaque:    "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k maps directly to a guest scalar.
func (k Kind) IsPrimitive() bool {
	return k >= KindBool && k <= KindString
}

func (k Kind) IsSigned() bool {
	return k >= KindInt && k <= KindInt64
}

func (k Kind) IsUnsigned() bool {
	return k >= KindUint && k <= KindUintptr
}

func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Bits returns the width of a numeric kind, or 0.
func (k Kind) Bits() int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt, KindInt64, KindUint, KindUint64, KindUintptr, KindFloat64:
		return 64
	}
	return 0
}

// IsSequence reports whether k is filled from the guest iterator protocol.
func (k Kind) IsSequence() bool {
	return k == KindSlice || k == KindArray
}
