package layout

import (
	"strconv"

	"github.com/wippyai/vmcodec/errors"
)

// MaxVariants bounds the number of cases in a Variants layout. Discriminants are
// ULEB128 encoded, so this keeps every discriminant a single byte.
const MaxVariants = 127

// Info holds static facts about a layout.
type Info struct {
	// Depth counts nested layout nodes; a primitive has depth 1.
	Depth int
	// MinSize is the smallest possible encoding in bytes.
	MinSize int
	// FixedSize is the exact encoding size, or -1 when it depends on the value.
	FixedSize int
	// HasNative reports whether any Native node is reachable.
	HasNative bool
}

// Analyze computes Info for l. Nil layouts contribute nothing.
func Analyze(l Layout) Info {
	switch t := l.(type) {
	case nil:
		return Info{FixedSize: 0}
	case Vector:
		elem := Analyze(t.Elem)
		return Info{
			Depth:     elem.Depth + 1,
			MinSize:   1,
			FixedSize: -1,
			HasNative: elem.HasNative,
		}
	case Struct:
		return analyzeFields(t.Fields)
	case Variants:
		return analyzeVariants(t)
	case Native:
		inner := Analyze(t.Inner)
		inner.Depth++
		inner.HasNative = true
		return inner
	default:
		w := l.Kind().Width()
		return Info{Depth: 1, MinSize: w, FixedSize: w}
	}
}

func analyzeFields(fields []Layout) Info {
	info := Info{Depth: 1}
	for _, f := range fields {
		fi := Analyze(f)
		if fi.Depth+1 > info.Depth {
			info.Depth = fi.Depth + 1
		}
		info.MinSize += fi.MinSize
		if info.FixedSize >= 0 {
			if fi.FixedSize < 0 {
				info.FixedSize = -1
			} else {
				info.FixedSize += fi.FixedSize
			}
		}
		info.HasNative = info.HasNative || fi.HasNative
	}
	return info
}

func analyzeVariants(v Variants) Info {
	info := Info{Depth: 1, MinSize: 1, FixedSize: -1}
	minCase := -1
	for _, c := range v.Cases {
		ci := analyzeFields(c)
		if ci.Depth > info.Depth {
			info.Depth = ci.Depth
		}
		if minCase < 0 || ci.MinSize < minCase {
			minCase = ci.MinSize
		}
		info.HasNative = info.HasNative || ci.HasNative
	}
	if minCase > 0 {
		info.MinSize += minCase
	}
	return info
}

// Validate checks l for structural problems the codec would otherwise only report
// when a value reaches the offending node: nil entries, empty or oversized variant
// lists, native layouts with unsupported content, and nesting beyond maxDepth.
// A maxDepth of zero disables the depth check.
func Validate(l Layout, maxDepth int) error {
	return validate(l, maxDepth, 1, nil)
}

func validate(l Layout, maxDepth, depth int, path []string) error {
	if maxDepth > 0 && depth > maxDepth {
		return errors.DepthExceeded(errors.PhaseValidate, path, maxDepth)
	}
	switch t := l.(type) {
	case nil:
		return errors.InvalidData(errors.PhaseValidate, path, "nil layout")
	case Vector:
		return validate(t.Elem, maxDepth, depth+1, append(path, "elem"))
	case Struct:
		for i, f := range t.Fields {
			if err := validate(f, maxDepth, depth+1, appendIndex(path, i)); err != nil {
				return err
			}
		}
		return nil
	case Variants:
		if len(t.Cases) == 0 {
			return errors.InvalidData(errors.PhaseValidate, path, "enum without variants")
		}
		if len(t.Cases) > MaxVariants {
			return errors.LimitExceeded(errors.PhaseValidate, path, "variant count", uint64(len(t.Cases)), MaxVariants)
		}
		for tag, c := range t.Cases {
			casePath := append(path, "variant("+strconv.Itoa(tag)+")")
			for i, f := range c {
				if err := validate(f, maxDepth, depth+1, appendIndex(casePath, i)); err != nil {
					return err
				}
			}
		}
		return nil
	case Native:
		return validateNative(t, path)
	default:
		return nil
	}
}

func validateNative(n Native, path []string) error {
	switch n.NativeKind {
	case Aggregator, Snapshot:
		switch n.Inner.(type) {
		case U64, U128:
			return nil
		}
		return errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Path(path...).
			LayoutType(n.String()).
			Detail("%s content must be u64 or u128", n.NativeKind).
			Build()
	case DerivedString:
		if !Equal(n.Inner, DerivedStringLayout()) {
			return errors.New(errors.PhaseValidate, errors.KindUnsupported).
				Path(path...).
				LayoutType(n.String()).
				Detail("derived string content must be %s", DerivedStringLayout()).
				Build()
		}
		return nil
	default:
		return errors.InvalidData(errors.PhaseValidate, path, "unknown native kind "+strconv.Itoa(int(n.NativeKind)))
	}
}

// Equal reports whether a and b describe the same shape.
func Equal(a, b Layout) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Vector:
		y, ok := b.(Vector)
		return ok && Equal(x.Elem, y.Elem)
	case Struct:
		y, ok := b.(Struct)
		return ok && equalList(x.Fields, y.Fields)
	case Variants:
		y, ok := b.(Variants)
		if !ok || len(x.Cases) != len(y.Cases) {
			return false
		}
		for i := range x.Cases {
			if !equalList(x.Cases[i], y.Cases[i]) {
				return false
			}
		}
		return true
	case Native:
		y, ok := b.(Native)
		return ok && x.NativeKind == y.NativeKind && Equal(x.Inner, y.Inner)
	default:
		return b != nil && a.Kind() == b.Kind()
	}
}

func equalList(a, b []Layout) bool {
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

func appendIndex(path []string, i int) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)
	return append(p, "["+strconv.Itoa(i)+"]")
}
