package binder

import (
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/convert"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/ref"
)

// Binding is a resolved call: the chosen candidate and its converted
// arguments. It holds the guest references taken during conversion until
// Close.
type Binding struct {
	Candidate *Candidate
	// Target is the receiver of an instance candidate.
	Target reflect.Value
	Args   []reflect.Value
	// Outs indexes the by-ref parameters in declaration order.
	Outs           []int
	converted      []bool
	KwargsMatched  int
	DefaultsNeeded int
}

// Close releases guest objects held by converted arguments. It is for
// bindings that are never invoked or whose call failed: after a
// successful call the host function owns its arguments.
func (b *Binding) Close() {
	for i, a := range b.Args {
		if !b.converted[i] {
			continue
		}
		if b.Candidate.params[i].ByRef {
			a = a.Elem()
		}
		convert.CloseObjects(a)
	}
}

// closeCells releases guest objects left in by-ref cells once the
// outputs have been packed.
func (b *Binding) closeCells() {
	for _, i := range b.Outs {
		convert.CloseObjects(b.Args[i].Elem())
	}
}

var comparisons = map[string]bool{
	"__eq__": true, "__ne__": true,
	"__lt__": true, "__le__": true,
	"__gt__": true, "__ge__": true,
}

// Bind resolves a guest call against the overload set. inst is the host
// receiver for instance candidates and the bound operand for operators;
// it may be nil. Arguments stay borrowed.
func (o *Overloads) Bind(inst any, args []ref.Borrowed, kwargs map[string]ref.Borrowed) (*Binding, error) {
	return o.bind(o.ordered(), inst, args, kwargs, true)
}

func (o *Overloads) bind(cands []*Candidate, inst any, args []ref.Borrowed, kwargs map[string]ref.Borrowed, generics bool) (*Binding, error) {
	noMatch := errors.NewNoMatchError(o.name, o.argTypes(args, kwargs))

	var (
		matches []*Binding
		open    []*Candidate
	)
	for _, c := range cands {
		if c.IsGeneric() {
			open = append(open, c)
			continue
		}
		if c.sig.Reverse && comparisons[c.sig.Operator] {
			continue
		}
		bd, err := o.match(c, inst, args, kwargs)
		if err != nil {
			noMatch.Add(c.String(), err)
			continue
		}
		matches = append(matches, bd)
	}

	if len(matches) > 0 {
		return o.selectBest(matches)
	}

	if generics && len(open) > 0 {
		closed := o.instantiate(open, args, noMatch)
		if len(closed) > 0 {
			bd, err := o.bind(sortCandidates(closed), inst, args, kwargs, false)
			if err == nil {
				return bd, nil
			}
			nm, ok := err.(*errors.NoMatchError)
			if !ok {
				return nil, err
			}
			for _, a := range nm.Attempts {
				noMatch.Add(a.Candidate, a.Reason)
			}
		}
	}

	Logger().Debug("no overload matched",
		zap.String("method", o.name),
		zap.Strings("args", noMatch.ArgTypes),
		zap.Int("attempts", len(noMatch.Attempts)))
	return nil, noMatch
}

// selectBest prefers the binding that consumed the most keywords, then
// the one needing the fewest defaults. A remaining tie is ambiguous only
// when defaults were needed; otherwise the first candidate wins.
func (o *Overloads) selectBest(matches []*Binding) (*Binding, error) {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.KwargsMatched > best.KwargsMatched ||
			(m.KwargsMatched == best.KwargsMatched && m.DefaultsNeeded < best.DefaultsNeeded) {
			best = m
		}
	}

	var tied []*Binding
	for _, m := range matches {
		if m.KwargsMatched == best.KwargsMatched && m.DefaultsNeeded == best.DefaultsNeeded {
			tied = append(tied, m)
		}
	}

	if len(tied) > 1 && best.DefaultsNeeded > 0 {
		names := make([]string, len(tied))
		for i, m := range tied {
			names[i] = m.Candidate.String()
		}
		for _, m := range matches {
			m.Close()
		}
		Logger().Warn("ambiguous overload",
			zap.String("method", o.name),
			zap.Strings("candidates", names))
		return nil, errors.Ambiguous(o.name, names)
	}

	for _, m := range matches {
		if m != best {
			m.Close()
		}
	}
	Logger().Debug("overload selected",
		zap.String("method", o.name),
		zap.Stringer("candidate", best.Candidate),
		zap.Int("kwargs", best.KwargsMatched),
		zap.Int("defaults", best.DefaultsNeeded))
	return best, nil
}

// match checks arity and converts every argument for one candidate.
func (o *Overloads) match(c *Candidate, inst any, args []ref.Borrowed, kwargs map[string]ref.Borrowed) (*Binding, error) {
	g := o.b.guest()
	bd := &Binding{
		Candidate: c,
		Args:      make([]reflect.Value, len(c.params)),
		converted: make([]bool, len(c.params)),
	}

	bound := -1
	switch {
	case !c.sig.Static:
		target, err := instanceValue(inst, c.recv)
		if err != nil {
			return nil, err
		}
		bd.Target = target
	case c.sig.Operator != "" && inst != nil && len(args) == c.inputCount()-1:
		bound = 0
		if c.sig.Reverse {
			bound = 1
		}
		if bound >= len(c.params) {
			return nil, errors.InvalidInput(errors.PhaseBind, "reverse operator needs two operands")
		}
	}

	var temps []ref.Owned
	defer func() { ref.ReleaseAll(temps...) }()

	// Outputs take a positional placeholder only when every parameter is
	// supplied positionally. The placeholder value is discarded.
	slots := len(c.params)
	if bound >= 0 {
		slots--
	}
	fillOuts := !c.variadic() && len(args) == slots

	sources := make([]ref.Borrowed, len(c.params))
	pos, used := 0, 0
	for i := range c.params {
		p := &c.params[i]
		if i == bound {
			continue
		}
		if p.Out {
			if fillOuts {
				sources[i] = args[pos]
				pos++
			}
			continue
		}

		if p.Variadic {
			rest := args[pos:]
			pos = len(args)
			if kw, ok := kwargs[p.Name]; ok && p.Name != "" {
				if len(rest) > 0 {
					return nil, errors.InvalidInput(errors.PhaseBind, "got multiple values for "+p.Name)
				}
				sources[i] = kw
				used++
				bd.KwargsMatched++
				continue
			}
			if len(rest) == 1 && o.isSequence(rest[0]) {
				sources[i] = rest[0]
				continue
			}
			list := g.NewList()
			temps = append(temps, list)
			for _, a := range rest {
				if err := g.ListAppend(list.Borrow(), a); err != nil {
					return nil, errors.Wrap(errors.PhaseBind, errors.KindUnsupported, err, "collect variadic arguments")
				}
			}
			sources[i] = list.Borrow()
			continue
		}

		if pos < len(args) {
			if _, ok := kwargs[p.Name]; ok && p.Name != "" {
				return nil, errors.InvalidInput(errors.PhaseBind, "got multiple values for "+p.Name)
			}
			sources[i] = args[pos]
			pos++
			continue
		}
		if kw, ok := kwargs[p.Name]; ok && p.Name != "" {
			sources[i] = kw
			used++
			bd.KwargsMatched++
			continue
		}
		if p.HasDefault {
			bd.DefaultsNeeded++
			continue
		}
		return nil, errors.InvalidInput(errors.PhaseBind, "missing argument "+paramLabel(p, i))
	}

	if pos < len(args) {
		return nil, errors.InvalidInput(errors.PhaseBind,
			fmt.Sprintf("takes %d positional arguments, got %d", pos, len(args)))
	}
	if used != len(kwargs) {
		return nil, errors.InvalidInput(errors.PhaseBind, "unexpected keyword "+c.unknownKeyword(kwargs))
	}

	for i := range c.params {
		p := &c.params[i]
		var v reflect.Value
		switch {
		case i == bound:
			iv, err := instanceValue(inst, p.Type)
			if err != nil {
				bd.Close()
				return nil, err
			}
			bd.Args[i] = iv
			continue
		case p.Out:
			if !sources[i].IsNull() {
				cv, err := o.b.conv.ToHostValue(sources[i], p.Type.Elem(), false)
				if err != nil {
					bd.Close()
					return nil, errors.Wrap(errors.PhaseBind, errors.KindTypeMismatch, err, "argument "+paramLabel(p, i))
				}
				convert.CloseObjects(cv)
			}
			bd.Args[i] = reflect.New(p.Type.Elem())
			bd.Outs = append(bd.Outs, i)
			continue
		case sources[i].IsNull():
			v = c.defaults[i]
		default:
			cv, err := o.b.conv.ToHostValue(sources[i], p.valueType(), false)
			if err != nil {
				bd.Close()
				kind, ok := errors.KindOf(err)
				if !ok {
					kind = errors.KindTypeMismatch
				}
				return nil, errors.Wrap(errors.PhaseBind, kind, err, "argument "+paramLabel(p, i))
			}
			v = cv
			bd.converted[i] = true
		}
		if p.ByRef {
			ptr := reflect.New(p.Type.Elem())
			ptr.Elem().Set(v)
			v = ptr
			bd.Outs = append(bd.Outs, i)
		}
		bd.Args[i] = v
	}
	return bd, nil
}

// isSequence reports whether a lone variadic argument already holds the
// whole tail.
func (o *Overloads) isSequence(h ref.Borrowed) bool {
	g := o.b.guest()
	if g.IsSequence(h) {
		return true
	}
	v, ok := g.TryUnwrap(h)
	return ok && v != nil && reflect.TypeOf(v).Kind() == reflect.Slice
}

func (c *Candidate) inputCount() int {
	n := 0
	for _, p := range c.params {
		if !p.Out {
			n++
		}
	}
	return n
}

func (c *Candidate) variadic() bool {
	for _, p := range c.params {
		if p.Variadic {
			return true
		}
	}
	return false
}

func (c *Candidate) unknownKeyword(kwargs map[string]ref.Borrowed) string {
	known := make(map[string]bool, len(c.params))
	for _, p := range c.params {
		if p.Name != "" && !p.Out {
			known[p.Name] = true
		}
	}
	var names []string
	for k := range kwargs {
		if !known[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(positional parameter named by keyword)"
	}
	return names[0]
}

func paramLabel(p *Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("#%d", i)
}

// instanceValue adapts a host instance to t, taking the address of a
// copy or dereferencing a pointer when needed.
func instanceValue(inst any, t reflect.Type) (reflect.Value, error) {
	if inst == nil {
		return reflect.Value{}, errors.InvalidInput(errors.PhaseBind, "instance of "+t.String()+" required")
	}
	v := reflect.ValueOf(inst)
	switch {
	case v.Type().AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	case t.Kind() == reflect.Pointer && v.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, nil
	case v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(v.Elem())
		return out, nil
	}
	if cv, err := convert.Coerce(inst, t); err == nil {
		return cv, nil
	}
	return reflect.Value{}, errors.TypeMismatch(errors.PhaseBind, nil, t.String(), fmt.Sprintf("%T", inst))
}

// instantiate closes generic candidates over type arguments inferred from
// the host types of the positional arguments. Unresolved or conflicting
// type arguments become any.
func (o *Overloads) instantiate(open []*Candidate, args []ref.Borrowed, noMatch *errors.NoMatchError) []*Candidate {
	g := o.b.guest()
	var closed []*Candidate
	for _, c := range open {
		typeArgs := make([]reflect.Type, c.sig.Generic.Arity)
		unify := func(a *TypeArg, h ref.Borrowed, elem bool) {
			t, ok := g.LookupHostType(h)
			if !ok {
				return
			}
			if a.Slice && !elem {
				if t.Kind() != reflect.Slice {
					return
				}
				t = t.Elem()
			}
			switch prev := typeArgs[a.Index]; {
			case prev == nil:
				typeArgs[a.Index] = t
			case prev != t:
				typeArgs[a.Index] = anyType
			}
		}

		pos := 0
		for _, p := range c.params {
			if p.Out || pos >= len(args) {
				continue
			}
			if p.Variadic {
				for _, h := range args[pos:] {
					if p.TypeArg != nil {
						unify(p.TypeArg, h, true)
					}
				}
				pos = len(args)
				continue
			}
			if p.TypeArg != nil {
				unify(p.TypeArg, args[pos], false)
			}
			pos++
		}
		for i := range typeArgs {
			if typeArgs[i] == nil {
				typeArgs[i] = anyType
			}
		}

		cc, err := c.sig.Generic.Instantiate(typeArgs)
		if err != nil {
			noMatch.Add(c.String(), err)
			continue
		}
		Logger().Debug("instantiated generic candidate",
			zap.String("method", o.name),
			zap.Stringer("candidate", cc))
		closed = append(closed, cc)
	}
	return closed
}

func (o *Overloads) argTypes(args []ref.Borrowed, kwargs map[string]ref.Borrowed) []string {
	g := o.b.guest()
	types := make([]string, 0, len(args)+len(kwargs))
	for _, a := range args {
		types = append(types, g.TypeName(a))
	}
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		types = append(types, k+"="+g.TypeName(kwargs[k]))
	}
	return types
}
