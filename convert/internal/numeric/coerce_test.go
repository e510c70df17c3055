package numeric

import (
	"math"
	"testing"
)

func TestCoerceToInt64(t *testing.T) {
	tests := []struct {
		input  any
		name   string
		want   int64
		wantOK bool
	}{
		{int64(math.MinInt64), "int64 min", math.MinInt64, true},
		{int8(-5), "int8", -5, true},
		{int(42), "int", 42, true},
		{uint8(200), "uint8", 200, true},
		{uint32(math.MaxUint32), "uint32 max", math.MaxUint32, true},
		{uint64(math.MaxInt64), "uint64 in range", math.MaxInt64, true},
		{uint64(math.MaxInt64 + 1), "uint64 too large", 0, false},
		{uint(math.MaxUint), "uint too large", 0, false},
		{float64(-3), "float64 integral", -3, true},
		{float64(3.5), "float64 fractional", 0, false},
		{float64(math.MaxInt64), "float64 2^63", 0, false},
		{float32(16), "float32 integral", 16, true},
		{"7", "string", 0, false},
		{nil, "nil", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceToInt64(tc.input)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("CoerceToInt64(%v) = %d, %v; want %d, %v", tc.input, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestCoerceToUint64(t *testing.T) {
	tests := []struct {
		input  any
		name   string
		want   uint64
		wantOK bool
	}{
		{uint64(math.MaxUint64), "uint64 max", math.MaxUint64, true},
		{uintptr(9), "uintptr", 9, true},
		{int(0), "int zero", 0, true},
		{int(-1), "int negative", 0, false},
		{int64(-1), "int64 negative", 0, false},
		{float64(1e19), "float64 large", 1e19, true},
		{float64(-1), "float64 negative", 0, false},
		{float64(0.5), "float64 fractional", 0, false},
		{true, "bool", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceToUint64(tc.input)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("CoerceToUint64(%v) = %d, %v; want %d, %v", tc.input, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestCoerceToFloat64(t *testing.T) {
	if f, ok := CoerceToFloat64(float32(1.5)); !ok || f != 1.5 {
		t.Errorf("float32: %v, %v", f, ok)
	}
	if f, ok := CoerceToFloat64(int16(-7)); !ok || f != -7 {
		t.Errorf("int16: %v, %v", f, ok)
	}
	if f, ok := CoerceToFloat64(uint64(math.MaxUint64)); !ok || f != float64(math.MaxUint64) {
		t.Errorf("uint64 max: %v, %v", f, ok)
	}
	if _, ok := CoerceToFloat64("1"); ok {
		t.Error("string should not coerce")
	}
}

func TestFits(t *testing.T) {
	if !FitsInt(127, 8) || FitsInt(128, 8) || FitsInt(-129, 8) {
		t.Error("int8 bounds")
	}
	if !FitsInt(math.MinInt32, 32) || FitsInt(math.MaxInt32+1, 32) {
		t.Error("int32 bounds")
	}
	if !FitsInt(math.MaxInt64, 64) {
		t.Error("int64 always fits")
	}
	if !FitsUint(255, 8) || FitsUint(1000, 8) {
		t.Error("uint8 bounds")
	}
	if !FitsUint(math.MaxUint16, 16) || FitsUint(math.MaxUint16+1, 16) {
		t.Error("uint16 bounds")
	}
	if !FitsFloat32(math.MaxFloat32) || FitsFloat32(math.MaxFloat64) || FitsFloat32(-1e39) {
		t.Error("float32 bounds")
	}
	if !FitsFloat32(math.Inf(1)) || !FitsFloat32(math.NaN()) {
		t.Error("infinity and NaN are representable")
	}
}
