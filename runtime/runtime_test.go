package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/hostbridge/binder"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
)

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func eval(t *testing.T, rt *Runtime, expr string) any {
	t.Helper()
	v, err := rt.Eval(context.Background(), expr, nil)
	if err != nil {
		t.Fatalf("%s: %v", expr, err)
	}
	return v
}

func TestRegisterOverloads(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.RegisterOverloads("", "max", []Overload{
		{Fn: func(a, b string) string { return max(a, b) }},
		{Fn: func(a, b int) int { return max(a, b) }},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := eval(t, rt, "max(1, 2)"); got != 2 {
		t.Errorf("max(1, 2) = %v (%T)", got, got)
	}
	if got := eval(t, rt, `max("a", "b")`); got != "b" {
		t.Errorf(`max("a", "b") = %v`, got)
	}

	_, err = rt.Eval(context.Background(), `max(1, "b")`, nil)
	if !errors.IsKind(err, errors.KindResolutionExhausted) {
		t.Fatalf("expected resolution failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "No method matches given arguments for max: (int, string)") {
		t.Errorf("unexpected message: %v", err)
	}

	if err := rt.RegisterFunc("", "max", func(xs []int) int { return len(xs) }); err != nil {
		t.Fatal(err)
	}
	if got := eval(t, rt, "max([5, 6, 7])"); got != 3 {
		t.Errorf("added overload not visible: %v", got)
	}
}

func TestModuleFunctions(t *testing.T) {
	rt := newTestRuntime(t)

	if err := rt.RegisterFunc("text", "upper", strings.ToUpper); err != nil {
		t.Fatal(err)
	}
	err := rt.RegisterFunc("text", "repeat", strings.Repeat, binder.Signature{
		Params: []binder.Param{{Name: "s"}, {Name: "count", Default: 2, HasDefault: true}},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		expr string
		want any
	}{
		{`text.upper("abc")`, "ABC"},
		{`text.repeat("ab")`, "abab"},
		{`text.repeat("x", count=3)`, "xxx"},
		{`text.repeat(s="y", count=1)`, "y"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := eval(t, rt, tt.expr); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	rt := newTestRuntime(t)

	tests := []struct {
		name string
		err  error
	}{
		{"empty name", rt.RegisterFunc("", "", func() {})},
		{"not a function", rt.RegisterFunc("", "x", 42)},
		{"bad default", rt.RegisterFunc("", "y", func(int) {}, binder.Signature{
			Params: []binder.Param{{Default: "x", HasDefault: true}},
		})},
		{"empty namespace", rt.RegisterHost(emptyHost{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if err := rt.RegisterFunc("", "x", 42); !errors.IsKind(err, errors.KindRegistration) {
		t.Errorf("expected registration error, got %v", err)
	}
}

type emptyHost struct{}

func (emptyHost) Namespace() string { return "" }

type clockHost struct {
	base time.Time
}

func (clockHost) Namespace() string { return "clock" }

func (h clockHost) Now() time.Time { return h.base }

func (clockHost) AddDays(t time.Time, days int) time.Time { return t.AddDate(0, 0, days) }

func (clockHost) ParseRFC1123(s string) (time.Time, error) { return time.Parse(time.RFC1123, s) }

type mathHost struct{}

func (mathHost) Namespace() string { return "m" }

func (mathHost) Register() map[string]any {
	return map[string]any{
		"abs": func(x int) int {
			if x < 0 {
				return -x
			}
			return x
		},
	}
}

func TestRegisterHost(t *testing.T) {
	rt := newTestRuntime(t)
	base := time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)

	if err := rt.RegisterHost(clockHost{base: base}); err != nil {
		t.Fatal(err)
	}
	if err := rt.RegisterHost(mathHost{}); err != nil {
		t.Fatal(err)
	}

	got, err := rt.Eval(context.Background(), "clock.add_days(clock.now(), 2)", reflect.TypeFor[time.Time]())
	if err != nil {
		t.Fatal(err)
	}
	if want := base.AddDate(0, 0, 2); !got.(time.Time).Equal(want) {
		t.Errorf("add_days = %v, want %v", got, want)
	}

	_, err = rt.Eval(context.Background(), `clock.parse_rfc1123("nope")`, nil)
	if !errors.IsKind(err, errors.KindHostInvocation) {
		t.Errorf("expected host invocation failure, got %v", err)
	}

	if got := eval(t, rt, "m.abs(-4)"); got != 4 {
		t.Errorf("m.abs(-4) = %v", got)
	}
	if _, err := rt.Eval(context.Background(), "m.register", nil); err == nil {
		t.Error("explicit registrar must not expose its methods")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Now", "now"},
		{"GetValue", "get_value"},
		{"AddDays", "add_days"},
		{"GetHTTPURL", "get_http_url"},
		{"HTTPServer", "http_server"},
		{"ParseRFC1123", "parse_rfc1123"},
		{"ID", "id"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type vector struct{ X, Y float64 }

func (v vector) String() string { return fmt.Sprintf("vector(%g, %g)", v.X, v.Y) }

func registerVector(t *testing.T, rt *Runtime) {
	t.Helper()
	if err := rt.RegisterFunc("", "vector", func(x, y float64) vector { return vector{x, y} }); err != nil {
		t.Fatal(err)
	}
	scale := func(a vector, k float64) vector { return vector{a.X * k, a.Y * k} }
	err := rt.RegisterType(reflect.TypeFor[vector](), TypeMethods{
		"__add__": {{Fn: func(a, b vector) vector { return vector{a.X + b.X, a.Y + b.Y} }}},
		"__sub__": {{Fn: func(a, b vector) vector { return vector{a.X - b.X, a.Y - b.Y} }}},
		"__mul__": {
			{Fn: scale},
			{Fn: func(k float64, a vector) vector { return scale(a, k) }},
		},
		"__neg__": {{Fn: func(a vector) vector { return vector{-a.X, -a.Y} }}},
		"__eq__":  {{Fn: func(a, b vector) bool { return a == b }}},
		"dot":     {{Fn: func(a, b vector) float64 { return a.X*b.X + a.Y*b.Y }}},
		"scale": {{Fn: scale, Sig: binder.Signature{
			Params: []binder.Param{{Name: "k", Default: 1.0, HasDefault: true}},
		}}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegisterType(t *testing.T) {
	rt := newTestRuntime(t)
	registerVector(t, rt)

	tests := []struct {
		expr string
		want any
	}{
		{"vector(1, 2) + vector(3, 4)", vector{4, 6}},
		{"vector(1, 2) - vector(1, 1)", vector{0, 1}},
		{"vector(1, 2) * 2", vector{2, 4}},
		{"3 * vector(1, 2)", vector{3, 6}},
		{"-vector(1, 2)", vector{-1, -2}},
		{"vector(1, 2) == vector(1, 2)", true},
		{"vector(1, 2) == vector(2, 1)", false},
		{"vector(1, 2).dot(vector(3, 4))", 11.0},
		{"vector(1, 2).scale()", vector{1, 2}},
		{"vector(1, 2).scale(k=3)", vector{3, 6}},
		{"str(vector(1, 2))", "vector(1, 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := eval(t, rt, tt.expr); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := rt.Binder().Lookup("runtime.vector.__rmul__"); !ok {
		t.Error("reflected multiply was not split into __rmul__")
	}
	if _, err := rt.Eval(context.Background(), `vector(1, 2) * "x"`, nil); err == nil {
		t.Error("expected error for unsupported operand")
	}
}

func TestExecAndGlobals(t *testing.T) {
	var printed []string
	rt := newTestRuntime(t, WithPrint(func(msg string) { printed = append(printed, msg) }))
	registerVector(t, rt)

	if err := rt.SetGlobal("origin", vector{}); err != nil {
		t.Fatal(err)
	}
	if err := rt.SetGlobal("limit", 3); err != nil {
		t.Fatal(err)
	}

	src := `
a = origin + vector(1, 1)
n = 0
for i in range(limit):
    n += i
print("done", n)
`
	globals, err := rt.Exec(context.Background(), "main.star", src)
	if err != nil {
		t.Fatal(err)
	}
	if globals["a"] != (vector{1, 1}) {
		t.Errorf("a = %v", globals["a"])
	}
	if globals["n"] != 3 {
		t.Errorf("n = %v", globals["n"])
	}
	if len(printed) != 1 || printed[0] != "done 3" {
		t.Errorf("printed %q", printed)
	}
}

func TestGuestErrors(t *testing.T) {
	rt := newTestRuntime(t, WithMaxSteps(10000))

	if err := rt.RegisterFunc("", "boom", func() { panic("bad") }); err != nil {
		t.Fatal(err)
	}

	_, err := rt.Exec(context.Background(), "boom.star", "boom()\n")
	if !errors.IsKind(err, errors.KindHostInvocation) {
		t.Fatalf("expected host invocation failure, got %v", err)
	}
	var pe *binder.PanicError
	if !stderrors.As(err, &pe) {
		t.Errorf("panic value lost: %v", err)
	}

	_, err = rt.Exec(context.Background(), "syntax.star", "def (:\n")
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid input for a syntax error, got %v", err)
	}

	_, err = rt.Exec(context.Background(), "spin.star", "while True:\n    pass\n")
	if err == nil {
		t.Error("expected step limit to stop the loop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(ctx); err == nil {
		t.Error("New must fail on a cancelled context")
	}
}

// lockFree reports whether another goroutine can take the guest lock
// within a short wait.
func lockFree(rt *Runtime) bool {
	got := make(chan struct{})
	go func() {
		rt.Guest().Lock()
		rt.Guest().Unlock()
		close(got)
	}()
	select {
	case <-got:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestAllowThreadsConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want bool
	}{
		{"default", nil, true},
		{"disabled", []Option{WithoutAllowThreads()}, false},
		{"config", []Option{WithConfig(Config{})}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime(t, tt.opts...)
			if err := rt.RegisterFunc("", "lock_free", func() bool { return lockFree(rt) }); err != nil {
				t.Fatal(err)
			}
			if got := eval(t, rt, "lock_free()"); got != tt.want {
				t.Errorf("lock released = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConcurrentEval(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.RegisterFunc("", "slow_add", func(a, b int) int {
		time.Sleep(time.Millisecond)
		return a + b
	})
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := rt.Eval(context.Background(), fmt.Sprintf("slow_add(%d, %d)", w, i), nil)
				if err != nil {
					errs <- err
					return
				}
				if v != w+i {
					errs <- fmt.Errorf("slow_add(%d, %d) = %v", w, i, v)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConcurrentNewWithLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(func() {
		SetLogger(nil)
		guest.SetLogger(nil)
		binder.SetLogger(nil)
	})

	const runtimes = 8
	var wg sync.WaitGroup
	for i := 0; i < runtimes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			rt, err := New(ctx, WithLogger(zap.New(core)))
			if err != nil {
				t.Error(err)
				return
			}
			defer rt.Close(ctx)
			if err := rt.RegisterFunc("", "one", func() int { return 1 }); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := logs.FilterMessage("registered host function").Len(); n != runtimes {
		t.Errorf("logged %d registrations, want %d", n, runtimes)
	}
}
