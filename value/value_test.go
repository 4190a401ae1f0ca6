package value

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/layout"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in    string
		short string
		ok    bool
	}{
		{"0x1", "0x1", true},
		{"0x01", "0x1", true},
		{"0xcafe", "0xcafe", true},
		{"1", "0x1", true},
		{"0x0", "0x0", true},
		{"0x" + strings.Repeat("1", 65), "", false},
		{"0x", "", false},
		{"0xzz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := ParseAddress(tt.in)
			if !tt.ok {
				if err == nil {
					t.Fatalf("ParseAddress(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) failed: %v", tt.in, err)
			}
			if got := a.ShortString(); got != tt.short {
				t.Errorf("ShortString() = %q, want %q", got, tt.short)
			}
		})
	}

	one := MustParseAddress("0x1")
	if one[AddressLength-1] != 1 || len(one.String()) != 2+2*AddressLength {
		t.Errorf("unexpected address %s", one)
	}
}

func TestAsBytes(t *testing.T) {
	b, ok := AsBytes(Bytes([]byte("abc")))
	if !ok || string(b) != "abc" {
		t.Errorf("AsBytes = %q, %v", b, ok)
	}
	if _, ok := AsBytes(Vector{U16(1)}); ok {
		t.Error("vector<u16> is not bytes")
	}
	if _, ok := AsBytes(U8(1)); ok {
		t.Error("u8 is not bytes")
	}
}

func TestU128FromInt(t *testing.T) {
	max128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	v, err := U128FromInt(max128)
	if err != nil {
		t.Fatalf("max u128 rejected: %v", err)
	}
	if v != NewU128(^uint64(0), ^uint64(0)) {
		t.Errorf("got %s", v)
	}

	over := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	if _, err := U128FromInt(over); err == nil {
		t.Error("2^128 should overflow u128")
	}
}

func TestEqual(t *testing.T) {
	a := NewStruct(Bool(true), Vector{U32(1), U32(2)}, NewVariant(1, U64(9)), NewDelayed(3, 8))
	b := NewStruct(Bool(true), Vector{U32(1), U32(2)}, NewVariant(1, U64(9)), NewDelayed(3, 8))
	if !Equal(a, b) {
		t.Fatal("identical values should be equal")
	}

	different := []Value{
		NewStruct(Bool(false), Vector{U32(1), U32(2)}, NewVariant(1, U64(9)), NewDelayed(3, 8)),
		NewStruct(Bool(true), Vector{U32(1)}, NewVariant(1, U64(9)), NewDelayed(3, 8)),
		NewStruct(Bool(true), Vector{U32(1), U32(2)}, NewVariant(0, U64(9)), NewDelayed(3, 8)),
		NewStruct(Bool(true), Vector{U32(1), U32(2)}, NewVariant(1, U64(9)), NewDelayed(3, 16)),
		NewStruct(Bool(true), Vector{U32(1), U64(2)}, NewVariant(1, U64(9)), NewDelayed(3, 8)),
		NewVariant(0, Bool(true)),
	}
	for _, d := range different {
		if Equal(a, d) {
			t.Errorf("%s should differ from %s", d, a)
		}
	}

	if Equal(U8(1), U16(1)) {
		t.Error("different widths must not compare equal")
	}
	if !Equal(NewU256(5), NewU256(5)) || Equal(NewU256(5), NewU256(6)) {
		t.Error("u256 equality")
	}
	if !Equal(Address(MustParseAddress("0x1")), Address(MustParseAddress("0x1"))) {
		t.Error("address equality")
	}
	if Equal(Address(MustParseAddress("0x1")), Signer(MustParseAddress("0x1"))) {
		t.Error("address and signer must differ")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{U8(7), "7u8"},
		{U64(42), "42u64"},
		{NewU128(1, 0), "18446744073709551616u128"},
		{Bool(true), "true"},
		{Signer(MustParseAddress("0x1")), "signer(0x1)"},
		{Vector{U16(1), U16(2)}, "[1u16, 2u16]"},
		{NewVariant(2, Bool(true), U32(13)), "variant(2){true, 13u32}"},
		{NewStruct(), "struct{}"},
		{NewDelayed(12, 8), "delayed(12, width 8)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{nil, "nil"},
		{U8(1), "u8"},
		{Vector{}, "vector"},
		{NewStruct(), "struct"},
		{NewVariant(0), "variant"},
		{NewDelayed(1, 8), "delayed"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.v); got != tt.want {
			t.Errorf("TypeName(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	tests := []struct {
		layout string
		text   string
		want   Value
	}{
		{"u8", `7`, U8(7)},
		{"u64", `"18446744073709551615"`, U64(^uint64(0))},
		{"u128", `"340282366920938463463374607431768211455"`, NewU128(^uint64(0), ^uint64(0))},
		{"u256", `1`, NewU256(1)},
		{"bool", `true`, Bool(true)},
		{"address", `"0x1"`, MustParseAddress("0x1")},
		{"signer", `"0x2"`, Signer(MustParseAddress("0x2"))},
		{"vector<u8>", `"0x0102"`, Vector{U8(1), U8(2)}},
		{"struct{bool,vector<u32>}", `[true,[1,2,3]]`, NewStruct(Bool(true), Vector{U32(1), U32(2), U32(3)})},
		{"enum{[u64],[],[bool,u32]}", `{"tag":2,"fields":[true,13]}`, NewVariant(2, Bool(true), U32(13))},
		{"enum{[u64],[]}", `{"tag":1}`, NewVariant(1)},
		{"aggregator<u64>", `{"delayed":12,"width":8}`, NewDelayed(12, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			l := layout.MustParse(tt.layout)
			got, err := ParseJSON([]byte(tt.text), l)
			if err != nil {
				t.Fatalf("ParseJSON failed: %v", err)
			}
			if !Equal(got, tt.want) {
				t.Fatalf("ParseJSON = %s, want %s", got, tt.want)
			}

			out, err := json.Marshal(ToJSON(got))
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			again, err := ParseJSON(out, l)
			if err != nil {
				t.Fatalf("ParseJSON(%s) failed: %v", out, err)
			}
			if !Equal(again, got) {
				t.Errorf("JSON round trip = %s, want %s", again, got)
			}
		})
	}
}

func TestJSON_Errors(t *testing.T) {
	tests := []struct {
		layout string
		text   string
		kind   errors.Kind
	}{
		{"u8", `256`, errors.KindInvalidInput},
		{"u8", `true`, errors.KindShapeMismatch},
		{"u128", `"340282366920938463463374607431768211456"`, errors.KindInvalidInput},
		{"struct{bool,u8}", `[true]`, errors.KindShapeMismatch},
		{"enum{[u64],[]}", `{"tag":2}`, errors.KindInvalidDiscriminant},
		{"vector<u16>", `"0x01"`, errors.KindShapeMismatch},
		{"bool", `{`, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.layout+" "+tt.text, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.text), layout.MustParse(tt.layout))
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}
