package runtime

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/binder"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as members of
// the guest module named by Namespace.
type Host interface {
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact guest names when the
// automatic PascalCase-to-snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// Overload is one Go function registered under a guest name.
type Overload struct {
	Fn  any
	Sig binder.Signature
}

// TypeMethods maps guest method names of a wrapped host type to their
// overloads. Operator names (__add__, __neg__, __eq__, ...) implement the
// matching guest operators.
type TypeMethods map[string][]Overload

// HostRegistry installs overload sets into the guest runtime.
type HostRegistry struct {
	g         *guest.Runtime
	b         *binder.Binder
	installed map[string]bool
	mu        sync.Mutex
}

func NewHostRegistry(g *guest.Runtime, b *binder.Binder) *HostRegistry {
	return &HostRegistry{
		g:         g,
		b:         b,
		installed: make(map[string]bool),
	}
}

// RegisterFunc adds fn as an overload of namespace.name. An empty
// namespace registers a global. Module functions are always static.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any, sigs ...binder.Signature) error {
	var sig binder.Signature
	if len(sigs) > 0 {
		sig = sigs[0]
	}
	return r.RegisterOverloads(namespace, name, []Overload{{Fn: fn, Sig: sig}})
}

// RegisterOverloads adds several overloads of namespace.name at once.
func (r *HostRegistry) RegisterOverloads(namespace, name string, overloads []Overload) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	cands := make([]*binder.Candidate, 0, len(overloads))
	for _, ov := range overloads {
		sig := ov.Sig
		sig.Static = true
		c, err := binder.NewCandidate(name, ov.Fn, sig)
		if err != nil {
			return errors.Registration(errors.PhaseHost, namespace, name, err)
		}
		cands = append(cands, c)
	}

	key := qualify(namespace, name)
	o := r.b.Define(key, cands...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installed[key] {
		return nil
	}
	r.installed[key] = true

	if namespace == "" {
		r.g.Define(name, r.callable(o))
	} else {
		r.g.DefineModule(namespace, map[string]guest.Callable{name: r.callable(o)})
	}
	Logger().Debug("registered host function",
		zap.String("namespace", namespace),
		zap.String("name", name),
		zap.Int("overloads", len(cands)))
	return nil
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, fn := range er.Register() {
			if err := r.RegisterFunc(ns, name, fn); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		if err := r.RegisterFunc(ns, toSnakeCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// RegisterType attaches methods and operators to wrapped values of t.
// Instance methods take the receiver as their first argument. A binary
// operator whose first parameter cannot hold t is registered as the
// reflected operator (__add__ becomes __radd__) with the instance bound
// to its second parameter.
func (r *HostRegistry) RegisterType(t reflect.Type, methods TypeMethods) error {
	table := make(map[string]guest.Callable, len(methods))
	prefix := t.String()

	for name, overloads := range methods {
		byName := make(map[string][]*binder.Candidate)
		for _, ov := range overloads {
			guestName, sig := name, ov.Sig
			if base, ok := operatorBase(name); ok {
				sig.Operator = name
				if reversed(ov.Fn, t) {
					sig.Reverse = true
					if _, cmp := comparisonOps[base]; !cmp {
						guestName = "__r" + base + "__"
						sig.Operator = guestName
					}
				}
			}
			c, err := binder.NewCandidate(guestName, ov.Fn, sig)
			if err != nil {
				return errors.Registration(errors.PhaseHost, prefix, name, err)
			}
			byName[guestName] = append(byName[guestName], c)
		}
		for guestName, cands := range byName {
			o := r.b.Define(qualify(prefix, guestName), cands...)
			table[guestName] = r.callable(o)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.g.DefineType(t, table)
	Logger().Debug("registered host type",
		zap.Stringer("type", t),
		zap.Int("methods", len(table)))
	return nil
}

// callable adapts an overload set to the guest calling convention. The
// bound guest instance is unwrapped to its host value.
func (r *HostRegistry) callable(o *binder.Overloads) guest.Callable {
	return func(self ref.Borrowed, args []ref.Borrowed, kwargs map[string]ref.Borrowed) ref.Owned {
		var inst any
		if !self.IsNull() {
			inst, _ = r.g.TryUnwrap(self)
		}
		return o.Invoke(inst, args, kwargs)
	}
}

var binaryOps = map[string]struct{}{
	"add": {}, "sub": {}, "mul": {}, "truediv": {}, "floordiv": {}, "mod": {},
	"and": {}, "or": {}, "xor": {}, "lshift": {}, "rshift": {},
}

var comparisonOps = map[string]struct{}{
	"eq": {}, "ne": {}, "lt": {}, "le": {}, "gt": {}, "ge": {},
}

var unaryOps = map[string]struct{}{
	"neg": {}, "pos": {}, "invert": {},
}

// operatorBase returns "add" for "__add__" when the name is an operator.
func operatorBase(name string) (string, bool) {
	if !strings.HasPrefix(name, "__") || !strings.HasSuffix(name, "__") || len(name) <= 4 {
		return "", false
	}
	base := name[2 : len(name)-2]
	for _, set := range []map[string]struct{}{binaryOps, comparisonOps, unaryOps} {
		if _, ok := set[base]; ok {
			return base, true
		}
	}
	return "", false
}

// reversed reports whether the first parameter of fn cannot take a value
// of t, making t the right operand.
func reversed(fn any, t reflect.Type) bool {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func || ft.NumIn() < 2 {
		return false
	}
	in := ft.In(0)
	if t.AssignableTo(in) {
		return false
	}
	if in.Kind() == reflect.Pointer && t.AssignableTo(in.Elem()) {
		return false
	}
	return true
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPURL -> get_http_url
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
