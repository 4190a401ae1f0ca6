package value

import (
	"strconv"
	"strings"
)

func (v U8) String() string  { return strconv.FormatUint(uint64(v), 10) + "u8" }
func (v U16) String() string { return strconv.FormatUint(uint64(v), 10) + "u16" }
func (v U32) String() string { return strconv.FormatUint(uint64(v), 10) + "u32" }
func (v U64) String() string { return strconv.FormatUint(uint64(v), 10) + "u64" }
func (v U128) String() string {
	return v.Int().Dec() + "u128"
}
func (v U256) String() string {
	return v.Int().Dec() + "u256"
}

func (v Bool) String() string {
	return strconv.FormatBool(bool(v))
}

func (v Vector) String() string {
	return "[" + joinValues(v) + "]"
}

func (v Struct) String() string {
	return "struct{" + joinValues(v.Fields) + "}"
}

func (v Variant) String() string {
	return "variant(" + strconv.FormatUint(uint64(v.Tag), 10) + "){" + joinValues(v.Fields) + "}"
}

func (v Delayed) String() string {
	return "delayed(" + strconv.FormatUint(v.Handle.ID, 10) + ", width " + strconv.FormatUint(uint64(v.Handle.Width), 10) + ")"
}

func joinValues(vs []Value) string {
	var b strings.Builder
	for i, x := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		if x == nil {
			b.WriteString("<nil>")
			continue
		}
		b.WriteString(x.String())
	}
	return b.String()
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Vector:
		y, ok := b.(Vector)
		return ok && equalList(x, y)
	case Struct:
		y, ok := b.(Struct)
		return ok && equalList(x.Fields, y.Fields)
	case Variant:
		y, ok := b.(Variant)
		return ok && x.Tag == y.Tag && equalList(x.Fields, y.Fields)
	default:
		// Remaining variants are comparable scalars and arrays.
		return a == b
	}
}

func equalList(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
