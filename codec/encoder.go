package codec

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/internal/binary"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

// Encode serializes v against l. On failure no bytes are returned.
func (c *Codec) Encode(v value.Value, l layout.Layout) ([]byte, error) {
	e := &encoder{c: c, w: binary.NewWriter(), phase: errors.PhaseEncode}
	if err := e.walk(v, l, 1); err != nil {
		return nil, err
	}
	out := e.w.Bytes()
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// Size returns len(Encode(v, l)) without producing the bytes. Delayed values
// contribute their declared width; their content is never materialized.
func (c *Codec) Size(v value.Value, l layout.Layout) (int, error) {
	e := &encoder{c: c, w: binary.NewCounter(), phase: errors.PhaseSize}
	if err := e.walk(v, l, 1); err != nil {
		return 0, err
	}
	return e.w.Len(), nil
}

// encoder walks a value and its layout in lockstep. The same walk serves
// encoding and size computation; only the writer differs.
type encoder struct {
	c     *Codec
	w     *binary.Writer
	phase errors.Phase
	// inDelayed is set while encoding the content of a delayed value.
	inDelayed bool
}

func (e *encoder) walk(v value.Value, l layout.Layout, depth int) error {
	if depth > e.c.limits.MaxDepth {
		return errors.DepthExceeded(e.phase, nil, e.c.limits.MaxDepth)
	}
	if l == nil {
		return errors.InvalidData(e.phase, nil, "nil layout")
	}

	switch lt := l.(type) {
	case layout.U8:
		x, ok := v.(value.U8)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.Byte(byte(x))
	case layout.U16:
		x, ok := v.(value.U16)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteU16(uint16(x))
	case layout.U32:
		x, ok := v.(value.U32)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteU32(uint32(x))
	case layout.U64:
		x, ok := v.(value.U64)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteU64(uint64(x))
	case layout.U128:
		x, ok := v.(value.U128)
		if !ok {
			return e.mismatch(v, l)
		}
		if x[2] != 0 || x[3] != 0 {
			return errors.InvalidData(e.phase, nil, "u128 value exceeds 128 bits")
		}
		e.w.WriteLimbs(x[:2])
	case layout.U256:
		x, ok := v.(value.U256)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteLimbs(x[:])
	case layout.Bool:
		x, ok := v.(value.Bool)
		if !ok {
			return e.mismatch(v, l)
		}
		if x {
			e.w.Byte(1)
		} else {
			e.w.Byte(0)
		}
	case layout.Address:
		x, ok := v.(value.Address)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteBytes(x[:])
	case layout.Signer:
		x, ok := v.(value.Signer)
		if !ok {
			return e.mismatch(v, l)
		}
		e.w.WriteBytes(x[:])
	case layout.Vector:
		x, ok := v.(value.Vector)
		if !ok {
			return e.mismatch(v, l)
		}
		return e.vector(x, lt, depth)
	case layout.Struct:
		x, ok := v.(value.Struct)
		if !ok {
			return e.mismatch(v, l)
		}
		return e.fields(x.Fields, lt.Fields, depth, "")
	case layout.Variants:
		x, ok := v.(value.Variant)
		if !ok {
			return e.mismatch(v, l)
		}
		return e.variant(x, lt, depth)
	case layout.Native:
		x, ok := v.(value.Delayed)
		if !ok {
			return e.mismatch(v, l)
		}
		return e.delayed(x, lt, depth)
	default:
		return errors.InvalidData(e.phase, nil, "unknown layout "+l.String())
	}
	return nil
}

func (e *encoder) vector(x value.Vector, l layout.Vector, depth int) error {
	if uint64(len(x)) > uint64(e.c.limits.MaxVectorLength) {
		return errors.LimitExceeded(e.phase, nil, "vector length", uint64(len(x)), uint64(e.c.limits.MaxVectorLength))
	}
	e.w.WriteULEB32(uint32(len(x)))
	for i, elem := range x {
		if err := e.walk(elem, l.Elem, depth+1); err != nil {
			return prefixPath(err, indexSegment(i))
		}
	}
	return nil
}

func (e *encoder) fields(vs []value.Value, ls []layout.Layout, depth int, segment string) error {
	if len(vs) != len(ls) {
		err := errors.New(e.phase, errors.KindShapeMismatch).
			Detail("expected %d fields, got %d", len(ls), len(vs)).
			Build()
		return prefixPath(err, segment)
	}
	for i := range vs {
		if err := e.walk(vs[i], ls[i], depth+1); err != nil {
			return prefixPath(prefixPath(err, indexSegment(i)), segment)
		}
	}
	return nil
}

func (e *encoder) variant(x value.Variant, l layout.Variants, depth int) error {
	if len(l.Cases) > layout.MaxVariants {
		return errors.LimitExceeded(e.phase, nil, "variant count", uint64(len(l.Cases)), layout.MaxVariants)
	}
	if uint64(x.Tag) >= uint64(len(l.Cases)) {
		return errors.InvalidDiscriminant(e.phase, nil, uint64(x.Tag), len(l.Cases))
	}
	e.w.WriteULEB32(x.Tag)
	return e.fields(x.Fields, l.Cases[x.Tag], depth, variantSegment(x.Tag))
}

func (e *encoder) delayed(x value.Delayed, l layout.Native, depth int) error {
	id := x.Handle.ID
	if e.inDelayed {
		return errors.DelayedValue(e.phase, nil, id, "delayed value inside delayed content")
	}
	if e.c.store == nil {
		return errors.DelayedValue(e.phase, nil, id, "no delayed store configured")
	}

	kind, width, err := e.c.store.Describe(id)
	if err != nil {
		return e.resolveFailed(id, err)
	}
	if kind != l.NativeKind {
		return errors.DelayedValue(e.phase, nil, id, "stored kind %s, layout expects %s", kind, l.NativeKind)
	}
	if width != x.Handle.Width {
		return errors.DelayedValue(e.phase, nil, id, "handle width %d, stored width %d", x.Handle.Width, width)
	}
	if e.w.Counting() {
		e.w.Skip(int(width))
		return nil
	}

	kind, content, err := e.c.store.Materialize(id)
	if err != nil {
		return e.resolveFailed(id, err)
	}
	if kind != l.NativeKind {
		return errors.DelayedValue(e.phase, nil, id, "stored kind %s, layout expects %s", kind, l.NativeKind)
	}
	start := e.w.Len()
	inner := &encoder{c: e.c, w: e.w, phase: e.phase, inDelayed: true}
	if err := inner.walk(content, l.Inner, depth+1); err != nil {
		return e.resolveFailed(id, prefixPath(err, "native"))
	}
	if n := e.w.Len() - start; n != int(width) {
		return errors.DelayedValue(e.phase, nil, id, "content encodes to %d bytes, width is %d", n, width)
	}
	return nil
}

func (e *encoder) resolveFailed(id uint64, cause error) error {
	Logger().Debug("delayed value resolution failed",
		zap.String("phase", string(e.phase)),
		zap.Uint64("id", id),
		zap.Error(cause))
	err := errors.DelayedValue(e.phase, nil, id, "resolution failed")
	err.Cause = cause
	return err
}

func (e *encoder) mismatch(v value.Value, l layout.Layout) error {
	return errors.ShapeMismatch(e.phase, nil, value.TypeName(v), l.String())
}

// prefixPath prepends segment to the path of a codec error. Paths are built
// while unwinding so successful walks never allocate them.
func prefixPath(err error, segment string) error {
	if segment == "" {
		return err
	}
	if ce, ok := err.(*errors.Error); ok {
		ce.Path = append([]string{segment}, ce.Path...)
	}
	return err
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func variantSegment(tag uint32) string {
	return "variant(" + strconv.FormatUint(uint64(tag), 10) + ")"
}
