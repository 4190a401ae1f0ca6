// Package value defines the runtime value model shared by the codec and its callers.
//
// Value is a sealed sum type mirroring layout.Layout. Every concrete type below
// pairs with exactly one layout kind; the codec rejects any other pairing.
package value

import (
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/layout"
)

// Value is implemented only by the types in this package.
type Value interface {
	// Kind returns the layout kind this value pairs with.
	Kind() layout.Kind
	String() string
	isValue()
}

type (
	U8   uint8
	U16  uint16
	U32  uint32
	U64  uint64
	Bool bool
)

// U128 is a 128-bit unsigned integer stored in a 256-bit word whose upper
// two limbs are always zero.
type U128 uint256.Int

// U256 is a 256-bit unsigned integer, limbs least significant first.
type U256 uint256.Int

// AddressLength is the byte length of Address and Signer.
const AddressLength = 32

// Address is an account identifier.
type Address [AddressLength]byte

// Signer is an address carrying the authority of its owner.
type Signer [AddressLength]byte

// Vector is an ordered sequence of values of the same layout.
type Vector []Value

// Struct is a runtime struct: positional fields, no discriminant.
type Struct struct {
	Fields []Value
}

// Variant is one tagged alternative of an enum-shaped struct.
type Variant struct {
	Fields []Value
	Tag    uint32
}

// DelayedHandle identifies content held by an external store.
// Width is the exact number of bytes the content occupies once serialized.
type DelayedHandle struct {
	ID    uint64
	Width uint32
}

// Delayed is a placeholder for content owned by an external store.
type Delayed struct {
	Handle DelayedHandle
}

// NewU128 builds a U128 from its high and low halves.
func NewU128(hi, lo uint64) U128 {
	return U128{lo, hi, 0, 0}
}

// U128FromInt converts a 256-bit word, rejecting values that do not fit in 128 bits.
func U128FromInt(x *uint256.Int) (U128, error) {
	if x[2] != 0 || x[3] != 0 {
		return U128{}, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Value(x.Dec()).
			Detail("value %s overflows u128", x.Dec()).
			Build()
	}
	return U128(*x), nil
}

// NewU256 builds a U256 from a uint64.
func NewU256(v uint64) U256 {
	return U256{v, 0, 0, 0}
}

// Int returns the value as a 256-bit word.
func (v U128) Int() *uint256.Int {
	x := uint256.Int(v)
	return &x
}

// Int returns the value as a 256-bit word.
func (v U256) Int() *uint256.Int {
	x := uint256.Int(v)
	return &x
}

// NewStruct builds a runtime struct.
func NewStruct(fields ...Value) Struct {
	return Struct{Fields: fields}
}

// NewVariant builds a tagged variant.
func NewVariant(tag uint32, fields ...Value) Variant {
	return Variant{Tag: tag, Fields: fields}
}

// NewDelayed builds a delayed value for the given handle.
func NewDelayed(id uint64, width uint32) Delayed {
	return Delayed{Handle: DelayedHandle{ID: id, Width: width}}
}

// Bytes builds a vector<u8> value.
func Bytes(b []byte) Vector {
	out := make(Vector, len(b))
	for i, x := range b {
		out[i] = U8(x)
	}
	return out
}

// AsBytes converts a vector<u8> value back to bytes.
func AsBytes(v Value) ([]byte, bool) {
	vec, ok := v.(Vector)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(vec))
	for i, e := range vec {
		b, ok := e.(U8)
		if !ok {
			return nil, false
		}
		out[i] = byte(b)
	}
	return out, true
}

// ParseAddress parses a 0x-prefixed hex address. Short forms such as "0x1"
// are left padded with zeros.
func ParseAddress(s string) (Address, error) {
	var a Address
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" || len(digits) > 2*AddressLength {
		return a, errors.InvalidInput(errors.PhaseParse, "invalid address "+quote(s))
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return a, errors.ParseFailed("address "+quote(s), err)
	}
	copy(a[AddressLength-len(raw):], raw)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the full 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ShortString returns the hex form without leading zeros, e.g. 0x1.
func (a Address) ShortString() string {
	s := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}

func (s Signer) String() string {
	return "signer(" + Address(s).ShortString() + ")"
}

func (U8) Kind() layout.Kind      { return layout.KindU8 }
func (U16) Kind() layout.Kind     { return layout.KindU16 }
func (U32) Kind() layout.Kind     { return layout.KindU32 }
func (U64) Kind() layout.Kind     { return layout.KindU64 }
func (U128) Kind() layout.Kind    { return layout.KindU128 }
func (U256) Kind() layout.Kind    { return layout.KindU256 }
func (Bool) Kind() layout.Kind    { return layout.KindBool }
func (Address) Kind() layout.Kind { return layout.KindAddress }
func (Signer) Kind() layout.Kind  { return layout.KindSigner }
func (Vector) Kind() layout.Kind  { return layout.KindVector }
func (Struct) Kind() layout.Kind  { return layout.KindStruct }
func (Variant) Kind() layout.Kind { return layout.KindVariants }
func (Delayed) Kind() layout.Kind { return layout.KindNative }

func (U8) isValue()      {}
func (U16) isValue()     {}
func (U32) isValue()     {}
func (U64) isValue()     {}
func (U128) isValue()    {}
func (U256) isValue()    {}
func (Bool) isValue()    {}
func (Address) isValue() {}
func (Signer) isValue()  {}
func (Vector) isValue()  {}
func (Struct) isValue()  {}
func (Variant) isValue() {}
func (Delayed) isValue() {}

// TypeName returns a short name for v's variant; "nil" for nil values.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case Variant:
		return "variant"
	case Delayed:
		return "delayed"
	default:
		return v.Kind().String()
	}
}

func quote(s string) string {
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return "\"" + s + "\""
}
