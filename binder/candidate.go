package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/errors"
)

// Param declares one parameter of a host function.
type Param struct {
	// Type is the Go parameter type. Nil takes it from the function.
	Type    reflect.Type
	Default any
	TypeArg *TypeArg
	// Name addresses the parameter by keyword. Unnamed parameters are
	// positional only.
	Name       string
	HasDefault bool
	// ByRef marks a *T parameter whose final value is returned to the
	// guest. Out additionally means it takes no input.
	ByRef    bool
	Out      bool
	Variadic bool
}

// TypeArg makes a generic parameter refer to a type argument.
type TypeArg struct {
	Index int
	Slice bool
}

// T refers to type argument i.
func T(i int) *TypeArg { return &TypeArg{Index: i} }

// SliceOfT refers to a slice of type argument i.
func SliceOfT(i int) *TypeArg { return &TypeArg{Index: i, Slice: true} }

// Resolve returns the concrete type for the given type arguments.
func (a *TypeArg) Resolve(args []reflect.Type) reflect.Type {
	t := args[a.Index]
	if a.Slice {
		return reflect.SliceOf(t)
	}
	return t
}

func (a *TypeArg) String() string {
	if a.Slice {
		return fmt.Sprintf("[]T%d", a.Index)
	}
	return fmt.Sprintf("T%d", a.Index)
}

// Generic declares an open generic candidate. Instantiate closes it over
// inferred type arguments.
type Generic struct {
	Instantiate func(typeArgs []reflect.Type) (*Candidate, error)
	Arity       int
}

// Signature describes how a Go function is exposed as an overload.
type Signature struct {
	Generic *Generic
	// Operator is the dunder name of an operator candidate, such as
	// "__add__". Operator candidates are static functions whose first
	// parameter is the left operand.
	Operator string
	Params   []Param
	// Derivation orders candidates of equal score, higher first.
	Derivation int
	// Static candidates take no receiver.
	Static bool
	// Reverse operators bind the instance to their second parameter.
	Reverse bool
	// NoAllowThreads keeps the guest lock held during the host call. The
	// lock is not reentrant, so such a function must not call back into
	// Exec or Eval on the same runtime; doing so deadlocks.
	NoAllowThreads bool
}

// Candidate is one validated overload of a host function.
type Candidate struct {
	fn       reflect.Value
	recv     reflect.Type
	result   reflect.Type
	name     string
	params   []Param
	defaults []reflect.Value
	sig      Signature
	score    int
	hasErr   bool
}

var errorType = reflect.TypeFor[error]()

// NewCandidate validates fn against sig. Instance candidates take the
// receiver as their first argument. fn may return nothing, a value, an
// error, or a value and an error. Nil sig.Params derives one positional
// parameter per function argument.
func NewCandidate(name string, fn any, sig Signature) (*Candidate, error) {
	c := &Candidate{name: name, sig: sig}
	if sig.Operator != "" {
		c.sig.Static = true
	}

	if sig.Generic != nil {
		if sig.Generic.Instantiate == nil || sig.Generic.Arity <= 0 {
			return nil, errors.InvalidInput(errors.PhaseBind, "generic candidate "+name+" needs an arity and Instantiate")
		}
		c.params = append([]Param(nil), sig.Params...)
		for _, p := range c.params {
			if p.Type == nil && p.TypeArg == nil {
				return nil, errors.InvalidInput(errors.PhaseBind, "generic candidate "+name+" has an untyped parameter")
			}
			if p.TypeArg != nil && p.TypeArg.Index >= sig.Generic.Arity {
				return nil, errors.InvalidInput(errors.PhaseBind, "type argument "+p.TypeArg.String()+" out of range")
			}
		}
		c.score = c.computeScore()
		return c, nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			HostType(fmt.Sprintf("%T", fn)).
			Detail("handler for %s must be a function", name).
			Build()
	}
	c.fn = rv
	ft := rv.Type()

	offset := 0
	if !c.sig.Static {
		if ft.NumIn() == 0 {
			return nil, errors.InvalidInput(errors.PhaseBind, "instance candidate "+name+" has no receiver")
		}
		c.recv = ft.In(0)
		offset = 1
	}

	if sig.Params == nil {
		for i := offset; i < ft.NumIn(); i++ {
			c.params = append(c.params, Param{Variadic: ft.IsVariadic() && i == ft.NumIn()-1})
		}
	} else {
		c.params = append([]Param(nil), sig.Params...)
	}
	if len(c.params) != ft.NumIn()-offset {
		return nil, errors.InvalidInput(errors.PhaseBind,
			fmt.Sprintf("%s declares %d parameters, function takes %d", name, len(c.params), ft.NumIn()-offset))
	}

	c.defaults = make([]reflect.Value, len(c.params))
	for i := range c.params {
		if err := c.checkParam(i, ft.In(offset+i), ft.IsVariadic() && offset+i == ft.NumIn()-1); err != nil {
			return nil, err
		}
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			c.hasErr = true
		} else {
			c.result = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.InvalidInput(errors.PhaseBind, name+": second result must be error")
		}
		c.result = ft.Out(0)
		c.hasErr = true
	default:
		return nil, errors.InvalidInput(errors.PhaseBind, name+": too many results")
	}

	c.score = c.computeScore()
	return c, nil
}

// MustCandidate is NewCandidate that panics on an invalid declaration.
func MustCandidate(name string, fn any, sig Signature) *Candidate {
	c, err := NewCandidate(name, fn, sig)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Candidate) checkParam(i int, actual reflect.Type, goVariadic bool) error {
	p := &c.params[i]
	if p.Type == nil {
		p.Type = actual
	}
	if p.Type != actual {
		return errors.New(errors.PhaseBind, errors.KindTypeMismatch).
			HostType(actual.String()).
			Detail("%s parameter %d declared as %s", c.name, i, p.Type).
			Build()
	}
	if p.Out {
		p.ByRef = true
	}
	if p.ByRef && actual.Kind() != reflect.Pointer {
		return errors.InvalidInput(errors.PhaseBind, fmt.Sprintf("%s parameter %d is by-ref but not a pointer", c.name, i))
	}
	if goVariadic {
		p.Variadic = true
	}
	if p.Variadic {
		if i != len(c.params)-1 || actual.Kind() != reflect.Slice {
			return errors.InvalidInput(errors.PhaseBind, fmt.Sprintf("%s: only a trailing slice parameter can be variadic", c.name))
		}
		if p.HasDefault {
			return errors.InvalidInput(errors.PhaseBind, fmt.Sprintf("%s: variadic parameter cannot have a default", c.name))
		}
	}
	if p.HasDefault {
		v, err := convert.Coerce(p.Default, p.valueType())
		if err != nil {
			return errors.Wrap(errors.PhaseBind, errors.KindTypeMismatch, err,
				fmt.Sprintf("%s parameter %d default", c.name, i))
		}
		c.defaults[i] = v
	}
	return nil
}

// valueType is the type a guest argument converts to.
func (p *Param) valueType() reflect.Type {
	if p.ByRef {
		return p.Type.Elem()
	}
	return p.Type
}

func (c *Candidate) Name() string             { return c.name }
func (c *Candidate) Score() int               { return c.score }
func (c *Candidate) Params() []Param          { return append([]Param(nil), c.params...) }
func (c *Candidate) Signature() Signature     { return c.sig }
func (c *Candidate) IsGeneric() bool          { return c.sig.Generic != nil }
func (c *Candidate) IsStatic() bool           { return c.sig.Static }
func (c *Candidate) Operator() string         { return c.sig.Operator }
func (c *Candidate) ResultType() reflect.Type { return c.result }

// String renders the candidate as name(type, name=default, ...type).
func (c *Candidate) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteByte('(')
	for i, p := range c.params {
		if i > 0 {
			b.WriteString(", ")
		}
		switch {
		case p.Out:
			b.WriteString("out ")
		case p.ByRef:
			b.WriteString("ref ")
		case p.Variadic:
			b.WriteString("...")
		}
		if p.Name != "" {
			b.WriteString(p.Name)
			b.WriteByte(' ')
		}
		switch {
		case p.TypeArg != nil:
			b.WriteString(p.TypeArg.String())
		case p.Variadic:
			b.WriteString(p.Type.Elem().String())
		default:
			b.WriteString(p.valueType().String())
		}
		if p.HasDefault {
			fmt.Fprintf(&b, "=%v", p.Default)
		}
	}
	b.WriteByte(')')
	return b.String()
}
