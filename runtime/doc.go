// Package runtime exposes Go functions and types to Starlark scripts.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Overloads share one guest name
//	rt.RegisterOverloads("", "max", []runtime.Overload{
//	    {Fn: func(a, b int) int { return max(a, b) }},
//	    {Fn: func(a, b float64) float64 { return math.Max(a, b) }},
//	    {Fn: func(a, b string) string { return max(a, b) }},
//	})
//
//	v, err := rt.Eval(ctx, `max("a", "b")`, nil)
//	fmt.Println(v) // "b"
//
// # Host Functions
//
// RegisterFunc adds one overload to a global or module member. Calling
// it again for the same name adds another overload:
//
//	rt.RegisterFunc("", "join", func(sep string, parts ...string) string {
//	    return strings.Join(parts, sep)
//	})
//	rt.RegisterFunc("text", "upper", strings.ToUpper)
//
// Parameter names, defaults and by-ref outputs are declared with a
// binder.Signature:
//
//	rt.RegisterFunc("", "parse_int", parseInt, binder.Signature{
//	    Params: []binder.Param{{Name: "s"}, {Name: "out", Out: true}},
//	})
//
// Or implement the Host interface for a full module. Method names are
// converted to snake_case (AddDays -> add_days):
//
//	rt.RegisterHost(clockHost{})
//
// # Host Types
//
// Values of Go types without a natural guest rendering are wrapped, not
// copied. RegisterType gives them methods and operators:
//
//	rt.RegisterType(reflect.TypeFor[Vector](), runtime.TypeMethods{
//	    "__add__": {{Fn: Vector.Add}},
//	    "__mul__": {{Fn: Vector.Scale}, {Fn: func(k float64, v Vector) Vector { return v.Scale(k) }}},
//	    "dot":     {{Fn: Vector.Dot}},
//	})
//
// A binary operator whose first parameter cannot take the type is the
// reflected form: 2 * v calls the second __mul__ overload above.
//
// # Type Mapping
//
//	Go Type               Starlark Type
//	──────────────────────────────────────
//	bool                  bool
//	intN/uintN            int
//	float32/float64       float
//	apd.Decimal           float
//	string                string
//	[]byte                bytes
//	[]T                   list
//	time.Time             datetime
//	time.Duration         timedelta
//	*T                    None or T
//	other types           wrapped host value
//
// See package convert for the full rules.
//
// # Thread Safety
//
// Registration must finish before scripts run. Exec and Eval take the
// guest lock. Host functions run with the lock released unless the
// runtime was created WithoutAllowThreads.
package runtime
