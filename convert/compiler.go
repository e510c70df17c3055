package convert

import (
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
)

var (
	objectType   = reflect.TypeFor[*guest.Object]()
	decimalType  = reflect.TypeFor[apd.Decimal]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	anyType      = reflect.TypeFor[any]()
	bytesType    = reflect.TypeFor[[]byte]()
)

// Compiler turns Go types into conversion descriptors. Results are cached
// and safe for concurrent use.
type Compiler struct {
	cache sync.Map // reflect.Type -> *Type
	enums map[reflect.Type]*Enum
	mu    sync.RWMutex
}

func NewCompiler() *Compiler {
	return &Compiler{enums: make(map[reflect.Type]*Enum)}
}

// Compile returns the descriptor of goType.
func (c *Compiler) Compile(goType reflect.Type) (*Type, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Detail("Go type cannot be nil").
			Build()
	}
	if cached, ok := c.cache.Load(goType); ok {
		return cached.(*Type), nil
	}

	seen := make(map[reflect.Type]*Type)
	ct := c.compile(goType, seen)
	for t, node := range seen {
		c.cache.LoadOrStore(t, node)
	}
	return ct, nil
}

// compile builds the descriptor of t. seen holds the nodes of the current
// compilation so recursive types resolve to the same node; they are
// published to the cache only once complete.
func (c *Compiler) compile(t reflect.Type, seen map[reflect.Type]*Type) *Type {
	if cached, ok := c.cache.Load(t); ok {
		return cached.(*Type)
	}
	if node, ok := seen[t]; ok {
		return node
	}

	ct := &Type{GoType: t}
	seen[t] = ct

	switch t {
	case objectType:
		ct.Kind = KindHandle
		return ct
	case decimalType:
		ct.Kind = KindDecimal
		return ct
	case timeType:
		ct.Kind = KindTime
		return ct
	case durationType:
		ct.Kind = KindDuration
		return ct
	}

	c.mu.RLock()
	enum := c.enums[t]
	c.mu.RUnlock()
	if enum != nil {
		ct.Kind = KindEnum
		ct.Enum = enum
		return ct
	}

	switch t.Kind() {
	case reflect.Bool:
		ct.Kind = KindBool
	case reflect.Int:
		ct.Kind = KindInt
	case reflect.Int8:
		ct.Kind = KindInt8
	case reflect.Int16:
		ct.Kind = KindInt16
	case reflect.Int32:
		ct.Kind = KindInt32
	case reflect.Int64:
		ct.Kind = KindInt64
	case reflect.Uint:
		ct.Kind = KindUint
	case reflect.Uint8:
		ct.Kind = KindUint8
	case reflect.Uint16:
		ct.Kind = KindUint16
	case reflect.Uint32:
		ct.Kind = KindUint32
	case reflect.Uint64:
		ct.Kind = KindUint64
	case reflect.Uintptr:
		ct.Kind = KindUintptr
	case reflect.Float32:
		ct.Kind = KindFloat32
	case reflect.Float64:
		ct.Kind = KindFloat64
	case reflect.String:
		ct.Kind = KindString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && c.enumOf(t.Elem()) == nil {
			ct.Kind = KindBytes
			break
		}
		ct.Kind = KindSlice
		ct.Elem = c.compile(t.Elem(), seen)
	case reflect.Array:
		ct.Kind = KindArray
		ct.Len = t.Len()
		ct.Elem = c.compile(t.Elem(), seen)
	case reflect.Map:
		ct.Kind = KindMap
		ct.Key = c.compile(t.Key(), seen)
		ct.Elem = c.compile(t.Elem(), seen)
	case reflect.Pointer:
		ct.Kind = KindNullable
		ct.Elem = c.compile(t.Elem(), seen)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			ct.Kind = KindAny
		} else {
			ct.Kind = KindInterface
		}
	default:
		ct.Kind = KindOpaque
	}
	return ct
}

func (c *Compiler) enumOf(t reflect.Type) *Enum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enums[t]
}

// defineEnum registers t and drops cached descriptors that may embed it.
func (c *Compiler) defineEnum(t reflect.Type, e *Enum) {
	c.mu.Lock()
	c.enums[t] = e
	c.mu.Unlock()
	c.cache.Clear()
}
