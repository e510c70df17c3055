package convert

import (
	"github.com/wippyai/hostbridge/convert/internal/types"
)

type Kind = types.Kind

const (
	KindInvalid   = types.KindInvalid
	KindBool      = types.KindBool
	KindInt       = types.KindInt
	KindInt8      = types.KindInt8
	KindInt16     = types.KindInt16
	KindInt32     = types.KindInt32
	KindInt64     = types.KindInt64
	KindUint      = types.KindUint
	KindUint8     = types.KindUint8
	KindUint16    = types.KindUint16
	KindUint32    = types.KindUint32
	KindUint64    = types.KindUint64
	KindUintptr   = types.KindUintptr
	KindFloat32   = types.KindFloat32
	KindFloat64   = types.KindFloat64
	KindString    = types.KindString
	KindBytes     = types.KindBytes
	KindDecimal   = types.KindDecimal
	KindTime      = types.KindTime
	KindDuration  = types.KindDuration
	KindEnum      = types.KindEnum
	KindNullable  = types.KindNullable
	KindSlice     = types.KindSlice
	KindArray     = types.KindArray
	KindMap       = types.KindMap
	KindAny       = types.KindAny
	KindInterface = types.KindInterface
	KindHandle    = types.KindHandle
	KindOpaque    = types.KindOpaque
)

type Type = types.Type
type Enum = types.Enum
