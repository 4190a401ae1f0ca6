// Package layout describes the expected shape of a runtime value.
//
// A Layout is always supplied by the caller and never inferred from a value.
// It drives encoding, decoding and size computation in the codec package.
package layout

import (
	"strings"
)

// Kind identifies a layout variant.
type Kind uint8

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindBool
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindVariants
	KindNative
)

var kindNames = [...]string{
	KindU8:       "u8",
	KindU16:      "u16",
	KindU32:      "u32",
	KindU64:      "u64",
	KindU128:     "u128",
	KindU256:     "u256",
	KindBool:     "bool",
	KindAddress:  "address",
	KindSigner:   "signer",
	KindVector:   "vector",
	KindStruct:   "struct",
	KindVariants: "enum",
	KindNative:   "native",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k has a fixed encoded width.
func (k Kind) IsPrimitive() bool {
	return k <= KindSigner
}

// Width returns the encoded byte width of a primitive kind, or 0.
func (k Kind) Width() int {
	switch k {
	case KindU8, KindBool:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindU128:
		return 16
	case KindU256, KindAddress, KindSigner:
		return 32
	default:
		return 0
	}
}

// NativeKind describes how a delayed value at a Native position is resolved.
type NativeKind uint8

const (
	Aggregator NativeKind = iota
	Snapshot
	DerivedString
)

func (k NativeKind) String() string {
	switch k {
	case Aggregator:
		return "aggregator"
	case Snapshot:
		return "snapshot"
	case DerivedString:
		return "derived_string"
	default:
		return "unknown"
	}
}

// Layout is a sealed sum type; the concrete types below are the only implementations.
type Layout interface {
	Kind() Kind
	String() string
	isLayout()
}

type (
	U8      struct{}
	U16     struct{}
	U32     struct{}
	U64     struct{}
	U128    struct{}
	U256    struct{}
	Bool    struct{}
	Address struct{}
	Signer  struct{}
)

// Vector is a variable-length sequence of Elem.
type Vector struct {
	Elem Layout
}

// Struct is a runtime struct: positional fields without a discriminant.
type Struct struct {
	Fields []Layout
}

// Variants is a tagged union; Cases[tag] lists the fields of each variant.
type Variants struct {
	Cases [][]Layout
}

// Native marks a position holding a delayed value of the given kind.
// Inner is the layout of the content the external store renders.
type Native struct {
	Inner      Layout
	NativeKind NativeKind
}

// NewNative creates a native layout.
func NewNative(kind NativeKind, inner Layout) Native {
	return Native{NativeKind: kind, Inner: inner}
}

func (U8) Kind() Kind       { return KindU8 }
func (U16) Kind() Kind      { return KindU16 }
func (U32) Kind() Kind      { return KindU32 }
func (U64) Kind() Kind      { return KindU64 }
func (U128) Kind() Kind     { return KindU128 }
func (U256) Kind() Kind     { return KindU256 }
func (Bool) Kind() Kind     { return KindBool }
func (Address) Kind() Kind  { return KindAddress }
func (Signer) Kind() Kind   { return KindSigner }
func (Vector) Kind() Kind   { return KindVector }
func (Struct) Kind() Kind   { return KindStruct }
func (Variants) Kind() Kind { return KindVariants }
func (Native) Kind() Kind   { return KindNative }

func (U8) String() string      { return "u8" }
func (U16) String() string     { return "u16" }
func (U32) String() string     { return "u32" }
func (U64) String() string     { return "u64" }
func (U128) String() string    { return "u128" }
func (U256) String() string    { return "u256" }
func (Bool) String() string    { return "bool" }
func (Address) String() string { return "address" }
func (Signer) String() string  { return "signer" }

func (l Vector) String() string {
	return "vector<" + layoutString(l.Elem) + ">"
}

func (l Struct) String() string {
	return "struct{" + joinLayouts(l.Fields) + "}"
}

func (l Variants) String() string {
	var b strings.Builder
	b.WriteString("enum{")
	for i, c := range l.Cases {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(joinLayouts(c))
		b.WriteByte(']')
	}
	b.WriteByte('}')
	return b.String()
}

func (l Native) String() string {
	return l.NativeKind.String() + "<" + layoutString(l.Inner) + ">"
}

func (U8) isLayout()       {}
func (U16) isLayout()      {}
func (U32) isLayout()      {}
func (U64) isLayout()      {}
func (U128) isLayout()     {}
func (U256) isLayout()     {}
func (Bool) isLayout()     {}
func (Address) isLayout()  {}
func (Signer) isLayout()   {}
func (Vector) isLayout()   {}
func (Struct) isLayout()   {}
func (Variants) isLayout() {}
func (Native) isLayout()   {}

func joinLayouts(ls []Layout) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = layoutString(l)
	}
	return strings.Join(parts, ",")
}

func layoutString(l Layout) string {
	if l == nil {
		return "<nil>"
	}
	return l.String()
}

// DerivedStringLayout returns the inner layout of a derived string: the string
// itself followed by zero padding that keeps the encoded width constant.
func DerivedStringLayout() Layout {
	return Struct{Fields: []Layout{
		Struct{Fields: []Layout{Vector{Elem: U8{}}}},
		Vector{Elem: U8{}},
	}}
}
