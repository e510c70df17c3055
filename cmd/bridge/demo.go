package main

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/binder"
	"github.com/wippyai/hostbridge/runtime"
)

// Vector is the demo host type exposed with operators.
type Vector struct {
	X, Y float64
}

func (v Vector) String() string { return fmt.Sprintf("Vector(%g, %g)", v.X, v.Y) }

func (v Vector) Add(o Vector) Vector       { return Vector{v.X + o.X, v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector       { return Vector{v.X - o.X, v.Y - o.Y} }
func (v Vector) Scale(k float64) Vector    { return Vector{v.X * k, v.Y * k} }
func (v Vector) Dot(o Vector) float64      { return v.X*o.X + v.Y*o.Y }
func (v Vector) Length() float64           { return math.Hypot(v.X, v.Y) }
func (v Vector) Equal(o Vector) bool       { return v == o }
func (v Vector) Neg() Vector               { return Vector{-v.X, -v.Y} }
func scaleLeft(k float64, v Vector) Vector { return v.Scale(k) }

// clockHost is registered as the clock module.
type clockHost struct {
	now func() time.Time
}

func (clockHost) Namespace() string { return "clock" }

func (h clockHost) Now() time.Time { return h.now() }

func (clockHost) AddDays(t time.Time, days int) time.Time { return t.AddDate(0, 0, days) }

func (h clockHost) Since(t time.Time) time.Duration { return h.now().Sub(t) }

func parseInt(s string, value *int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	*value = n
	return true
}

var decimalContext = apd.BaseContext.WithPrecision(34)

func sumDecimals(values ...apd.Decimal) (apd.Decimal, error) {
	var total apd.Decimal
	for i := range values {
		if _, err := decimalContext.Add(&total, &total, &values[i]); err != nil {
			return apd.Decimal{}, err
		}
	}
	return total, nil
}

func roundDecimal(d apd.Decimal, places int32) (apd.Decimal, error) {
	var out apd.Decimal
	if _, err := decimalContext.Quantize(&out, &d, -places); err != nil {
		return apd.Decimal{}, err
	}
	return out, nil
}

// registerDemo installs the demo host library.
func registerDemo(rt *runtime.Runtime, now func() time.Time) error {
	if err := rt.RegisterOverloads("", "max", []runtime.Overload{
		{Fn: func(a, b int) int { return max(a, b) }},
		{Fn: func(a, b string) string { return max(a, b) }},
		{Fn: func(first int, rest ...int) int {
			for _, r := range rest {
				first = max(first, r)
			}
			return first
		}},
		{Fn: func(a, b time.Time) time.Time {
			if b.After(a) {
				return b
			}
			return a
		}},
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("", "parse_int", parseInt, binder.Signature{
		Params: []binder.Param{{Name: "s"}, {Name: "value", Out: true}},
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("", "join", func(sep string, parts ...string) string {
		return strings.Join(parts, sep)
	}, binder.Signature{
		Params: []binder.Param{{Name: "sep"}, {Name: "parts", Variadic: true}},
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("dec", "sum", sumDecimals); err != nil {
		return err
	}
	if err := rt.RegisterFunc("dec", "round", roundDecimal, binder.Signature{
		Params: []binder.Param{{Name: "d"}, {Name: "places", Default: 2, HasDefault: true}},
	}); err != nil {
		return err
	}

	if err := rt.RegisterHost(clockHost{now: now}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("", "Vector", func(x, y float64) Vector { return Vector{x, y} },
		binder.Signature{Params: []binder.Param{{Name: "x"}, {Name: "y"}}}); err != nil {
		return err
	}
	return rt.RegisterType(reflect.TypeFor[Vector](), runtime.TypeMethods{
		"__add__": {{Fn: Vector.Add}},
		"__sub__": {{Fn: Vector.Sub}},
		"__mul__": {{Fn: Vector.Scale}, {Fn: scaleLeft}},
		"__eq__":  {{Fn: Vector.Equal}},
		"__neg__": {{Fn: Vector.Neg}},
		"dot":     {{Fn: Vector.Dot}},
		"length":  {{Fn: Vector.Length}},
	})
}
