package convert

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/guest"
	"github.com/wippyai/hostbridge/ref"
)

func newTestConverter(t *testing.T) (*guest.Runtime, *Converter) {
	t.Helper()
	rt := guest.New()
	t.Cleanup(func() { rt.Close() })
	return rt, New(rt)
}

func eval(t *testing.T, rt *guest.Runtime, expr string) ref.Owned {
	t.Helper()
	h, err := rt.Eval(context.Background(), expr)
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", expr, err)
	}
	t.Cleanup(h.Release)
	return h
}

func guestString(t *testing.T, rt *guest.Runtime, h ref.Owned) string {
	t.Helper()
	s, err := rt.Str(h.Borrow())
	if err != nil {
		t.Fatalf("Str failed: %v", err)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	rt, c := newTestConverter(t)
	base := rt.Live()

	tests := []struct {
		name  string
		value any
	}{
		{"int", 42},
		{"int8", int8(-128)},
		{"int64 min", int64(math.MinInt64)},
		{"uint64 max", uint64(math.MaxUint64)},
		{"uint16", uint16(65535)},
		{"float32", float32(1.5)},
		{"float64", 3.25},
		{"string", "héllo"},
		{"bool", true},
		{"bytes", []byte("abc")},
		{"slice", []int{1, 2, 3}},
		{"nested slice", [][]string{{"a"}, {"b", "c"}}},
		{"duration", 90 * time.Minute},
		{"negative duration", -1500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := c.ToGuest(tt.value, nil)
			if err != nil {
				t.Fatalf("ToGuest failed: %v", err)
			}
			defer h.Release()

			got, err := c.ToHost(h.Borrow(), reflect.TypeOf(tt.value), false)
			if err != nil {
				t.Fatalf("ToHost failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("round trip = %#v, want %#v", got, tt.value)
			}
		})
	}

	if n := rt.Live(); n != base {
		t.Errorf("Live = %d after round trips, want %d", n, base)
	}
}

func TestNumericChecks(t *testing.T) {
	rt, c := newTestConverter(t)

	tests := []struct {
		expr   string
		target reflect.Type
		kind   errors.Kind
	}{
		{"1000", reflect.TypeFor[uint8](), errors.KindRangeOverflow},
		{"128", reflect.TypeFor[int8](), errors.KindRangeOverflow},
		{"-1", reflect.TypeFor[uint](), errors.KindRangeOverflow},
		{"2**70", reflect.TypeFor[int64](), errors.KindRangeOverflow},
		{"1e40", reflect.TypeFor[float32](), errors.KindRangeOverflow},
		{"True", reflect.TypeFor[int](), errors.KindTypeMismatch},
		{"True", reflect.TypeFor[float64](), errors.KindTypeMismatch},
		{"1.0", reflect.TypeFor[int](), errors.KindTypeMismatch},
		{"'1'", reflect.TypeFor[int](), errors.KindTypeMismatch},
		{"1", reflect.TypeFor[string](), errors.KindTypeMismatch},
		{"1", reflect.TypeFor[bool](), errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" to "+tt.target.String(), func(t *testing.T) {
			h := eval(t, rt, tt.expr)
			_, err := c.ToHost(h.Borrow(), tt.target, false)
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	h := eval(t, rt, "255")
	if v, err := c.ToHost(h.Borrow(), reflect.TypeFor[uint8](), false); err != nil || v != uint8(255) {
		t.Errorf("255 to uint8 = %v, %v", v, err)
	}
	h = eval(t, rt, "7")
	if v, err := c.ToHost(h.Borrow(), reflect.TypeFor[float64](), false); err != nil || v != 7.0 {
		t.Errorf("int to float64 = %v, %v", v, err)
	}
}

func TestSequences(t *testing.T) {
	rt, c := newTestConverter(t)

	h := eval(t, rt, "[1, 2, 3]")
	got, err := c.ToHost(h.Borrow(), reflect.TypeFor[[]int32](), false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int32{1, 2, 3}) {
		t.Errorf("got %#v", got)
	}

	h = eval(t, rt, "(4, 5)")
	got, err = c.ToHost(h.Borrow(), reflect.TypeFor[[2]uint8](), false)
	if err != nil {
		t.Fatal(err)
	}
	if got != [2]uint8{4, 5} {
		t.Errorf("got %#v", got)
	}

	h = eval(t, rt, "[1]")
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[[2]int](), false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("short array: expected type mismatch, got %v", err)
	}

	h = eval(t, rt, "b'xyz'")
	got, err = c.ToHost(h.Borrow(), reflect.TypeFor[[]byte](), false)
	if err != nil || string(got.([]byte)) != "xyz" {
		t.Errorf("bytes = %v, %v", got, err)
	}

	h = eval(t, rt, "[120, 121]")
	got, err = c.ToHost(h.Borrow(), reflect.TypeFor[[]byte](), false)
	if err != nil || string(got.([]byte)) != "xy" {
		t.Errorf("int list to bytes = %v, %v", got, err)
	}

	h = eval(t, rt, `{"a": 1, "b": 2}`)
	got, err = c.ToHost(h.Borrow(), reflect.TypeFor[map[string]int](), false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]int{"a": 1, "b": 2}) {
		t.Errorf("map = %#v", got)
	}
}

func TestSequenceFailsWhole(t *testing.T) {
	rt, c := newTestConverter(t)

	h := eval(t, rt, `["a", 2]`)
	base := rt.Live()
	_, err := c.ToHost(h.Borrow(), reflect.TypeFor[[]string](), false)
	if !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "[1]") {
		t.Errorf("error %q does not name the failing index", err)
	}
	if n := rt.Live(); n != base {
		t.Errorf("Live = %d, want %d", n, base)
	}

	h = eval(t, rt, `{"a": {"x": 1}, 2: 3}`)
	base = rt.Live()
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[map[string]any](), false); err == nil {
		t.Fatal("expected int key to fail")
	}
	if n := rt.Live(); n != base {
		t.Errorf("partial map leaked guest references: Live = %d, want %d", n, base)
	}
}

func TestNone(t *testing.T) {
	rt, c := newTestConverter(t)
	none := rt.None()

	for _, target := range []reflect.Type{
		reflect.TypeFor[*int](),
		reflect.TypeFor[[]int](),
		reflect.TypeFor[map[string]int](),
		reflect.TypeFor[any](),
	} {
		v, err := c.ToHostValue(none, target, false)
		if err != nil {
			t.Errorf("None to %s: %v", target, err)
			continue
		}
		if !v.IsZero() {
			t.Errorf("None to %s = %v, want zero", target, v)
		}
	}

	if _, err := c.ToHost(none, reflect.TypeFor[int](), false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("None to int: expected type mismatch, got %v", err)
	}

	h := eval(t, rt, "5")
	v, err := c.ToHost(h.Borrow(), reflect.TypeFor[*int](), false)
	if err != nil {
		t.Fatal(err)
	}
	if p := v.(*int); p == nil || *p != 5 {
		t.Errorf("*int = %v", v)
	}

	n, err := c.ToGuest((*int)(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Release()
	if rt.Kind(n.Borrow()) != guest.KindNone {
		t.Errorf("nil pointer encoded as %s", rt.Kind(n.Borrow()))
	}
}

func TestNullHandle(t *testing.T) {
	rt, c := newTestConverter(t)

	_, err := c.ToHost(ref.Borrowed{}, reflect.TypeFor[int](), true)
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !rt.Occurred() {
		t.Error("reportErrors did not set the guest error")
	}
	rt.Fetch()
}

func TestUntyped(t *testing.T) {
	rt, c := newTestConverter(t)

	h := eval(t, rt, `[1, "a", 2.5, True, None]`)
	got, err := c.ToHost(h.Borrow(), reflect.TypeFor[any](), false)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{1, "a", 2.5, true, nil}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}

	h = eval(t, rt, "2**63")
	if got, _ := c.ToHost(h.Borrow(), reflect.TypeFor[any](), false); got != uint64(1<<63) {
		t.Errorf("2**63 = %#v, want uint64", got)
	}
	h = eval(t, rt, "2**64")
	got, _ = c.ToHost(h.Borrow(), reflect.TypeFor[any](), false)
	if b, ok := got.(*big.Int); !ok || b.Cmp(new(big.Int).Lsh(big.NewInt(1), 64)) != 0 {
		t.Errorf("2**64 = %#v, want *big.Int", got)
	}

	h = eval(t, rt, `{"k": 1}`)
	got, err = c.ToHost(h.Borrow(), reflect.TypeFor[any](), false)
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := got.(*guest.Object)
	if !ok {
		t.Fatalf("dict to any = %T, want *guest.Object", got)
	}
	if obj.Kind() != guest.KindDict {
		t.Errorf("object kind = %s", obj.Kind())
	}
	if rt.RefCount(h.Borrow()) != 2 {
		t.Errorf("RefCount = %d, want 2 while the object is open", rt.RefCount(h.Borrow()))
	}
	obj.Close()
	if rt.RefCount(h.Borrow()) != 1 {
		t.Errorf("RefCount = %d after Close, want 1", rt.RefCount(h.Borrow()))
	}

	back, err := c.ToGuest(obj, nil)
	if err == nil {
		back.Release()
		t.Error("closed object must not convert")
	}
}

type color int32

const (
	red color = iota
	green
)

type perm uint8

func TestEnums(t *testing.T) {
	rt, c := newTestConverter(t)
	if err := DefineEnum(c, false, red, green); err != nil {
		t.Fatal(err)
	}
	if err := DefineEnum(c, true, perm(1), perm(2), perm(4)); err != nil {
		t.Fatal(err)
	}

	h := eval(t, rt, "1")
	if v, err := c.ToHost(h.Borrow(), reflect.TypeFor[color](), false); err != nil || v != green {
		t.Errorf("1 to color = %v, %v", v, err)
	}
	h = eval(t, rt, "7")
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[color](), false); !errors.IsKind(err, errors.KindInvalidEnum) {
		t.Errorf("7 to color: expected invalid enum, got %v", err)
	}
	if v, err := c.ToHost(h.Borrow(), reflect.TypeFor[perm](), false); err != nil || v != perm(7) {
		t.Errorf("7 to flags = %v, %v", v, err)
	}
	h = eval(t, rt, "300")
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[perm](), false); !errors.IsKind(err, errors.KindRangeOverflow) {
		t.Errorf("300 to perm: expected overflow, got %v", err)
	}

	w, err := c.ToGuest(green, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	if rt.Kind(w.Borrow()) != guest.KindForeign {
		t.Fatalf("enum encoded as %s, want foreign", rt.Kind(w.Borrow()))
	}
	if v, err := c.ToHost(w.Borrow(), reflect.TypeFor[color](), false); err != nil || v != green {
		t.Errorf("wrapped enum = %v, %v", v, err)
	}
}

func TestTimes(t *testing.T) {
	rt, c := newTestConverter(t)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc", time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC), "2024-01-02 03:04:05.000006+00:00"},
		{"naive", time.Date(2024, 1, 2, 3, 4, 5, 0, Unspecified), "2024-01-02 03:04:05"},
		{"offset", time.Date(2024, 1, 2, 0, 0, 0, 0, time.FixedZone("", 5*3600+1800)), "2024-01-02 00:00:00+05:30"},
		{"rounds", time.Date(2024, 1, 2, 0, 0, 0, 1500, time.UTC), "2024-01-02 00:00:00.000002+00:00"},
		{"clamps", time.Date(2024, 1, 2, 0, 0, 0, 999999999, time.UTC), "2024-01-02 00:00:00.999999+00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := c.ToGuest(tt.in, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer h.Release()
			if got := guestString(t, rt, h); got != tt.want {
				t.Errorf("str = %s, want %s", got, tt.want)
			}
		})
	}

	decoded := []struct {
		expr   string
		loc    *time.Location
		offset int
	}{
		{"datetime.datetime(2024, 1, 2, tzinfo=datetime.utc)", time.UTC, 0},
		{"datetime.datetime(2024, 1, 2)", Unspecified, 0},
		{"datetime.date(2024, 1, 2)", Unspecified, 0},
		{"datetime.datetime(2024, 1, 2, tzinfo=datetime.timezone(-2))", nil, -7200},
		{`time.time(year=2024, month=1, day=2, location="UTC")`, time.UTC, 0},
	}
	for _, tt := range decoded {
		h := eval(t, rt, tt.expr)
		v, err := c.ToHost(h.Borrow(), reflect.TypeFor[time.Time](), false)
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		got := v.(time.Time)
		if got.Year() != 2024 || got.Month() != 1 || got.Day() != 2 {
			t.Errorf("%s = %v", tt.expr, got)
		}
		if tt.loc != nil && got.Location() != tt.loc {
			t.Errorf("%s location = %v, want %v", tt.expr, got.Location(), tt.loc)
		}
		if _, off := got.Zone(); off != tt.offset {
			t.Errorf("%s offset = %d, want %d", tt.expr, off, tt.offset)
		}
	}

	h := eval(t, rt, `"2024-01-02"`)
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[time.Time](), false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("string to time: expected type mismatch, got %v", err)
	}

	far := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.ToGuest(far, nil); !errors.IsKind(err, errors.KindRangeOverflow) {
		t.Errorf("year 10000: expected overflow, got %v", err)
	}
	w, err := c.ToGuestBestEffort(far)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	if rt.Kind(w.Borrow()) != guest.KindForeign {
		t.Errorf("best effort kind = %s, want foreign", rt.Kind(w.Borrow()))
	}
	if v, err := c.ToHost(w.Borrow(), reflect.TypeFor[time.Time](), false); err != nil || !v.(time.Time).Equal(far) {
		t.Errorf("wrapped time = %v, %v", v, err)
	}

	for _, off := range []int{1172, -(3600 + 75)} {
		lmt := time.Date(1900, 1, 1, 12, 0, 0, 0, time.FixedZone("LMT", off))
		if _, err := c.ToGuest(lmt, nil); !errors.IsKind(err, errors.KindRangeOverflow) {
			t.Errorf("offset %ds: expected overflow, got %v", off, err)
			continue
		}
		w, err := c.ToGuestBestEffort(lmt)
		if err != nil {
			t.Fatal(err)
		}
		v, err := c.ToHost(w.Borrow(), reflect.TypeFor[time.Time](), false)
		if err != nil || !v.(time.Time).Equal(lmt) {
			t.Errorf("offset %ds: wrapped time = %v, %v", off, v, err)
		}
		w.Release()
	}
}

func TestDurations(t *testing.T) {
	rt, c := newTestConverter(t)

	tests := []struct {
		expr string
		want time.Duration
	}{
		{"datetime.timedelta(days=1, seconds=2, microseconds=3)", 24*time.Hour + 2*time.Second + 3*time.Microsecond},
		{"-datetime.timedelta(seconds=1)", -time.Second},
		{`time.parse_duration("90m")`, 90 * time.Minute},
	}
	for _, tt := range tests {
		h := eval(t, rt, tt.expr)
		v, err := c.ToHost(h.Borrow(), reflect.TypeFor[time.Duration](), false)
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		if v != tt.want {
			t.Errorf("%s = %v, want %v", tt.expr, v, tt.want)
		}
	}

	h := eval(t, rt, "datetime.timedelta(days=200000)")
	if _, err := c.ToHost(h.Borrow(), reflect.TypeFor[time.Duration](), false); !errors.IsKind(err, errors.KindRangeOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}

	d, err := c.ToGuest(-time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()
	if got := guestString(t, rt, d); got != "-1 day, 23:59:59" {
		t.Errorf("str = %s", got)
	}

	fine, err := c.ToGuest(2*time.Microsecond+999*time.Nanosecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer fine.Release()
	if v, err := c.ToHost(fine.Borrow(), reflect.TypeFor[time.Duration](), false); err != nil || v != 2*time.Microsecond {
		t.Errorf("sub-microsecond duration = %v, %v, want truncation to 2µs", v, err)
	}
}

func TestDecimal(t *testing.T) {
	rt, c := newTestConverter(t)

	tests := []struct {
		expr string
		want string
	}{
		{"12345678901234567890", "12345678901234567890"},
		{"1.5", "1.5"},
		{"-3", "-3"},
	}
	for _, tt := range tests {
		h := eval(t, rt, tt.expr)
		v, err := c.ToHost(h.Borrow(), decimalType, false)
		if err != nil {
			t.Errorf("%s: %v", tt.expr, err)
			continue
		}
		d := v.(apd.Decimal)
		if got := d.String(); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.expr, got, tt.want)
		}
	}

	h := eval(t, rt, `"1.5"`)
	if _, err := c.ToHost(h.Borrow(), decimalType, false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("string to decimal: expected type mismatch, got %v", err)
	}

	g, err := c.ToGuest(*apd.New(125, -2), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()
	if f, _ := rt.AsFloat(g.Borrow()); f != 1.25 {
		t.Errorf("decimal encoded as %v", f)
	}
}

type point struct{ X, Y int }

type celsius struct{ deg float64 }

func (c celsius) ConvertTo(t reflect.Type) (any, bool) {
	if t.Kind() == reflect.Float64 {
		return c.deg, true
	}
	return nil, false
}

func TestCodecs(t *testing.T) {
	rt, c := newTestConverter(t)

	c.Codecs().RegisterEncoder(EncoderFor(func(g guest.API, p point) (ref.Owned, bool) {
		return g.NewString(fmt.Sprintf("%d,%d", p.X, p.Y)), true
	}))
	c.Codecs().RegisterDecoder(DecoderFor("string", func(g guest.API, h ref.Borrowed) (point, bool) {
		s, err := g.AsString(h)
		if err != nil {
			return point{}, false
		}
		var p point
		if _, err := fmt.Sscanf(s, "%d,%d", &p.X, &p.Y); err != nil {
			return point{}, false
		}
		return p, true
	}))

	h, err := c.ToGuest(point{1, 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()
	if got := guestString(t, rt, h); got != "1,2" {
		t.Errorf("encoded point = %s", got)
	}

	v, err := c.ToHost(h.Borrow(), reflect.TypeFor[point](), false)
	if err != nil {
		t.Fatal(err)
	}
	if v != (point{1, 2}) {
		t.Errorf("decoded point = %v", v)
	}

	bad := eval(t, rt, `"nope"`)
	if _, err := c.ToHost(bad.Borrow(), reflect.TypeFor[point](), false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
}

func TestForeignValues(t *testing.T) {
	rt, c := newTestConverter(t)

	w, err := c.ToGuest(celsius{21.5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	if rt.Kind(w.Borrow()) != guest.KindForeign {
		t.Fatalf("struct encoded as %s", rt.Kind(w.Borrow()))
	}

	if v, err := c.ToHost(w.Borrow(), reflect.TypeFor[celsius](), false); err != nil || v != (celsius{21.5}) {
		t.Errorf("same type = %v, %v", v, err)
	}
	if v, err := c.ToHost(w.Borrow(), reflect.TypeFor[*celsius](), false); err != nil || *v.(*celsius) != (celsius{21.5}) {
		t.Errorf("pointer target = %v, %v", v, err)
	}
	if v, err := c.ToHost(w.Borrow(), reflect.TypeFor[float64](), false); err != nil || v != 21.5 {
		t.Errorf("Convertible = %v, %v", v, err)
	}
	if _, err := c.ToHost(w.Borrow(), reflect.TypeFor[string](), false); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
}

type shape interface{ Area() float64 }

type square struct{ side float64 }

func (s square) Area() float64 { return s.side * s.side }

type liveList []int

func (liveList) Subscribe(func()) func() { return func() {} }

func TestEncodeWrapping(t *testing.T) {
	rt, c := newTestConverter(t)

	h, err := c.ToGuest(square{2}, reflect.TypeFor[shape]())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()
	if name := rt.TypeName(h.Borrow()); name != "convert.shape" {
		t.Errorf("TypeName = %s, want convert.shape", name)
	}

	l, err := c.ToGuest(liveList{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()
	if rt.Kind(l.Borrow()) != guest.KindForeign {
		t.Errorf("change notifier slice encoded as %s", rt.Kind(l.Borrow()))
	}

	e, err := c.ToGuest([]int(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()
	if got := guestString(t, rt, e); got != "[]" {
		t.Errorf("nil slice = %s, want []", got)
	}

	m, err := c.ToGuest(map[string]int{"a": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()
	if rt.Kind(m.Borrow()) != guest.KindForeign {
		t.Errorf("map encoded as %s, want foreign", rt.Kind(m.Borrow()))
	}
}

type tree []tree

func TestCompiler(t *testing.T) {
	c := NewCompiler()

	ct, err := c.Compile(reflect.TypeFor[tree]())
	if err != nil {
		t.Fatal(err)
	}
	if ct.Kind != KindSlice || ct.Elem != ct {
		t.Errorf("recursive slice did not resolve to itself: %+v", ct)
	}
	again, _ := c.Compile(reflect.TypeFor[tree]())
	if again != ct {
		t.Error("descriptor not cached")
	}

	tests := []struct {
		typ  reflect.Type
		kind Kind
	}{
		{reflect.TypeFor[*guest.Object](), KindHandle},
		{reflect.TypeFor[apd.Decimal](), KindDecimal},
		{reflect.TypeFor[time.Time](), KindTime},
		{reflect.TypeFor[time.Duration](), KindDuration},
		{reflect.TypeFor[[]byte](), KindBytes},
		{reflect.TypeFor[[3]int](), KindArray},
		{reflect.TypeFor[map[string]int](), KindMap},
		{reflect.TypeFor[*int](), KindNullable},
		{reflect.TypeFor[any](), KindAny},
		{reflect.TypeFor[shape](), KindInterface},
		{reflect.TypeFor[point](), KindOpaque},
		{reflect.TypeFor[func()](), KindOpaque},
	}
	for _, tt := range tests {
		ct, err := c.Compile(tt.typ)
		if err != nil {
			t.Fatal(err)
		}
		if ct.Kind != tt.kind {
			t.Errorf("%s: kind = %s, want %s", tt.typ, ct.Kind, tt.kind)
		}
	}

	if _, err := c.Compile(nil); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("nil type: expected invalid input, got %v", err)
	}
}

func TestDefineEnumClearsCache(t *testing.T) {
	_, c := newTestConverter(t)

	before, _ := c.Compile(reflect.TypeFor[[]color]())
	if before.Elem.Kind != KindInt32 {
		t.Fatalf("elem kind = %s before DefineEnum", before.Elem.Kind)
	}
	if err := DefineEnum(c, false, red); err != nil {
		t.Fatal(err)
	}
	after, _ := c.Compile(reflect.TypeFor[[]color]())
	if after.Elem.Kind != KindEnum {
		t.Errorf("elem kind = %s after DefineEnum, want enum", after.Elem.Kind)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		target reflect.Type
		want   any
		kind   errors.Kind
	}{
		{"int to int8", 5, reflect.TypeFor[int8](), int8(5), ""},
		{"int to float", 2, reflect.TypeFor[float64](), 2.0, ""},
		{"integral float to int", 3.0, reflect.TypeFor[int](), 3, ""},
		{"enum to int", green, reflect.TypeFor[int](), 1, ""},
		{"named string", "x", reflect.TypeFor[label](), label("x"), ""},
		{"nil slice", nil, reflect.TypeFor[[]int](), []int(nil), ""},
		{"overflow", 300, reflect.TypeFor[uint8](), nil, errors.KindRangeOverflow},
		{"fraction", 1.5, reflect.TypeFor[int](), nil, errors.KindTypeMismatch},
		{"string to int", "1", reflect.TypeFor[int](), nil, errors.KindTypeMismatch},
		{"nil to int", nil, reflect.TypeFor[int](), nil, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.target)
			if tt.kind != "" {
				if !errors.IsKind(err, tt.kind) {
					t.Fatalf("expected %s, got %v", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got.Interface(), tt.want) {
				t.Errorf("got %#v, want %#v", got.Interface(), tt.want)
			}
		})
	}
}

type label string
