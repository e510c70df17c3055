package convert

import (
	"reflect"
	"strconv"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// Converter moves values between host and guest. It holds no per-call
// state; every method expects the guest lock to be held.
type Converter struct {
	g        guest.API
	compiler *Compiler
	codecs   *Codecs
}

// Option configures a Converter.
type Option func(*Converter)

// WithCodecs shares a codec registry between converters.
func WithCodecs(c *Codecs) Option {
	return func(conv *Converter) { conv.codecs = c }
}

// WithCompiler shares a descriptor cache between converters.
func WithCompiler(c *Compiler) Option {
	return func(conv *Converter) { conv.compiler = c }
}

func New(g guest.API, opts ...Option) *Converter {
	c := &Converter{g: g}
	for _, opt := range opts {
		opt(c)
	}
	if c.compiler == nil {
		c.compiler = NewCompiler()
	}
	if c.codecs == nil {
		c.codecs = NewCodecs()
	}
	return c
}

func (c *Converter) Guest() guest.API    { return c.g }
func (c *Converter) Compiler() *Compiler { return c.compiler }
func (c *Converter) Codecs() *Codecs     { return c.codecs }

// Compile returns the descriptor of t.
func (c *Converter) Compile(t reflect.Type) (*Type, error) {
	return c.compiler.Compile(t)
}

// owned checks the result of a guest constructor. Constructors only
// return null once the guest heap is closed.
func owned(h ref.Owned, phase errors.Phase, path []string) (ref.Owned, error) {
	if h.IsNull() {
		return ref.Owned{}, errors.New(phase, errors.KindUnsupported).
			Path(path...).
			Cause(guest.ErrClosed).
			Detail("guest constructor returned no value").
			Build()
	}
	return h, nil
}

func indexPath(path []string, i int) []string {
	return appendPath(path, "["+strconv.Itoa(i)+"]")
}

func appendPath(path []string, elem string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), elem)
}
