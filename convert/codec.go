package convert

import (
	"reflect"
	"sync"

	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// Encoder converts host values of the types it accepts into guest values.
type Encoder interface {
	CanEncode(t reflect.Type) bool
	// TryEncode returns an owned guest value, or false to let the next
	// encoder try.
	TryEncode(g guest.API, v any, declared reflect.Type) (ref.Owned, bool)
}

// Decoder converts guest values into host values of the target types it
// accepts.
type Decoder interface {
	CanDecode(guestType string, target reflect.Type) bool
	// TryDecode returns a value assignable to target, or false to let the
	// next decoder try. h stays borrowed.
	TryDecode(g guest.API, h ref.Borrowed, target reflect.Type) (any, bool)
}

// EncoderFunc adapts a function that accepts every type.
type EncoderFunc func(g guest.API, v any, declared reflect.Type) (ref.Owned, bool)

func (f EncoderFunc) CanEncode(reflect.Type) bool { return true }

func (f EncoderFunc) TryEncode(g guest.API, v any, declared reflect.Type) (ref.Owned, bool) {
	return f(g, v, declared)
}

// DecoderFunc adapts a function that accepts every guest and target type.
type DecoderFunc func(g guest.API, h ref.Borrowed, target reflect.Type) (any, bool)

func (f DecoderFunc) CanDecode(string, reflect.Type) bool { return true }

func (f DecoderFunc) TryDecode(g guest.API, h ref.Borrowed, target reflect.Type) (any, bool) {
	return f(g, h, target)
}

type typedEncoder[T any] struct {
	fn func(g guest.API, v T) (ref.Owned, bool)
}

func (e typedEncoder[T]) CanEncode(t reflect.Type) bool { return t == reflect.TypeFor[T]() }

func (e typedEncoder[T]) TryEncode(g guest.API, v any, _ reflect.Type) (ref.Owned, bool) {
	tv, ok := v.(T)
	if !ok {
		return ref.Owned{}, false
	}
	return e.fn(g, tv)
}

// EncoderFor returns an encoder for exactly T.
func EncoderFor[T any](fn func(g guest.API, v T) (ref.Owned, bool)) Encoder {
	return typedEncoder[T]{fn: fn}
}

type typedDecoder[T any] struct {
	fn        func(g guest.API, h ref.Borrowed) (T, bool)
	guestType string
}

func (d typedDecoder[T]) CanDecode(guestType string, target reflect.Type) bool {
	if d.guestType != "" && d.guestType != guestType {
		return false
	}
	return target == reflect.TypeFor[T]() || target == anyType
}

func (d typedDecoder[T]) TryDecode(g guest.API, h ref.Borrowed, _ reflect.Type) (any, bool) {
	v, ok := d.fn(g, h)
	if !ok {
		return nil, false
	}
	return v, true
}

// DecoderFor returns a decoder producing T from guest values whose type
// name is guestType. An empty guestType accepts any guest type. The
// decoder also serves untyped (any) targets.
func DecoderFor[T any](guestType string, fn func(g guest.API, h ref.Borrowed) (T, bool)) Decoder {
	return typedDecoder[T]{fn: fn, guestType: guestType}
}

type decoderKey struct {
	target    reflect.Type
	guestType string
}

// Codecs is an ordered registry of encoders and decoders. The first codec
// that succeeds wins. Candidate lists are cached per type and dropped on
// registration.
type Codecs struct {
	encCache sync.Map // reflect.Type -> []Encoder
	decCache sync.Map // decoderKey -> []Decoder
	encoders []Encoder
	decoders []Decoder
	mu       sync.RWMutex
}

func NewCodecs() *Codecs {
	return &Codecs{}
}

func (c *Codecs) RegisterEncoder(e Encoder) {
	c.mu.Lock()
	c.encoders = append(c.encoders, e)
	c.mu.Unlock()
	c.encCache.Clear()
}

func (c *Codecs) RegisterDecoder(d Decoder) {
	c.mu.Lock()
	c.decoders = append(c.decoders, d)
	c.mu.Unlock()
	c.decCache.Clear()
}

// HasEncoder reports whether any encoder accepts t.
func (c *Codecs) HasEncoder(t reflect.Type) bool {
	return len(c.encodersFor(t)) > 0
}

func (c *Codecs) encode(g guest.API, v any, declared reflect.Type) (ref.Owned, bool) {
	for _, e := range c.encodersFor(reflect.TypeOf(v)) {
		if h, ok := e.TryEncode(g, v, declared); ok && !h.IsNull() {
			return h, true
		}
	}
	return ref.Owned{}, false
}

func (c *Codecs) decode(g guest.API, h ref.Borrowed, target reflect.Type) (any, bool) {
	for _, d := range c.decodersFor(g.TypeName(h), target) {
		if v, ok := d.TryDecode(g, h, target); ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Codecs) encodersFor(t reflect.Type) []Encoder {
	if cached, ok := c.encCache.Load(t); ok {
		return cached.([]Encoder)
	}
	c.mu.RLock()
	var out []Encoder
	for _, e := range c.encoders {
		if e.CanEncode(t) {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()
	c.encCache.Store(t, out)
	return out
}

func (c *Codecs) decodersFor(guestType string, target reflect.Type) []Decoder {
	key := decoderKey{target: target, guestType: guestType}
	if cached, ok := c.decCache.Load(key); ok {
		return cached.([]Decoder)
	}
	c.mu.RLock()
	var out []Decoder
	for _, d := range c.decoders {
		if d.CanDecode(guestType, target) {
			out = append(out, d)
		}
	}
	c.mu.RUnlock()
	c.decCache.Store(key, out)
	return out
}
