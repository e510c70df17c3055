package types

import (
	"reflect"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		want string
		kind Kind
	}{
		{"invalid", KindInvalid},
		{"bool", KindBool},
		{"int", KindInt},
		{"int8", KindInt8},
		{"uint64", KindUint64},
		{"float32", KindFloat32},
		{"string", KindString},
		{"bytes", KindBytes},
		{"decimal", KindDecimal},
		{"time", KindTime},
		{"duration", KindDuration},
		{"enum", KindEnum},
		{"nullable", KindNullable},
		{"slice", KindSlice},
		{"array", KindArray},
		{"map", KindMap},
		{"any", KindAny},
		{"interface", KindInterface},
		{"handle", KindHandle},
		{"opaque", KindOpaque},
		{"unknown", Kind(255)},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := tc.kind.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindClasses(t *testing.T) {
	for k := KindBool; k <= KindString; k++ {
		if !k.IsPrimitive() {
			t.Errorf("%s should be primitive", k)
		}
	}
	for _, k := range []Kind{KindBytes, KindDecimal, KindTime, KindEnum, KindSlice, KindAny} {
		if k.IsPrimitive() {
			t.Errorf("%s should not be primitive", k)
		}
	}
	if !KindInt16.IsSigned() || KindInt16.IsUnsigned() {
		t.Error("int16 is signed")
	}
	if !KindUintptr.IsUnsigned() || KindUintptr.IsSigned() {
		t.Error("uintptr is unsigned")
	}
	if !KindFloat32.IsFloat() || KindInt.IsFloat() {
		t.Error("float classification")
	}
}

func TestKindBits(t *testing.T) {
	tests := map[Kind]int{
		KindInt8:    8,
		KindUint16:  16,
		KindInt32:   32,
		KindFloat32: 32,
		KindInt:     64,
		KindUint64:  64,
		KindString:  0,
	}
	for k, want := range tests {
		if got := k.Bits(); got != want {
			t.Errorf("%s.Bits() = %d, want %d", k, got, want)
		}
	}
}

func TestTypeBaseAndNilable(t *testing.T) {
	enum := &Type{Kind: KindEnum, Enum: &Enum{Underlying: KindUint8, Values: map[int64]string{1: "A"}}}
	if enum.Base() != KindUint8 {
		t.Errorf("Base() = %s, want uint8", enum.Base())
	}
	if !enum.Enum.Defined(1) || enum.Enum.Defined(2) {
		t.Error("Defined mismatch")
	}

	nilable := []*Type{
		{Kind: KindNullable},
		{Kind: KindSlice},
		{Kind: KindAny},
		{Kind: KindOpaque, GoType: reflect.TypeFor[func()]()},
	}
	for _, ty := range nilable {
		if !ty.Nilable() {
			t.Errorf("%s should accept None", ty.Kind)
		}
	}
	for _, ty := range []*Type{{Kind: KindInt}, {Kind: KindTime}, {Kind: KindOpaque, GoType: reflect.TypeFor[struct{}]()}} {
		if ty.Nilable() {
			t.Errorf("%s should not accept None", ty.Kind)
		}
	}
}
