package codec

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/internal/binary"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

// zeroSizePrealloc caps the capacity reserved up front for vectors whose
// elements may encode to zero bytes.
const zeroSizePrealloc = 1024

// Decode deserializes data against l. The whole input must be consumed.
func (c *Codec) Decode(data []byte, l layout.Layout) (value.Value, error) {
	v, n, err := c.DecodePrefix(data, l)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("trailing bytes: %d of %d consumed", n, len(data)).
			Build()
	}
	return v, nil
}

// DecodePrefix deserializes one value from the front of data and returns the
// number of bytes it occupied. Bytes after the value are ignored.
func (c *Codec) DecodePrefix(data []byte, l layout.Layout) (value.Value, int, error) {
	d := &decoder{c: c, r: binary.NewReader(data)}
	v, err := d.walk(l, newPlan(l, 1, c.limits.MaxDepth), 1)
	if err != nil {
		return nil, 0, err
	}
	return v, d.r.Position(), nil
}

type decoder struct {
	c *Codec
	r *binary.Reader
	// inDelayed is set while decoding the content of a native position.
	inDelayed bool
}

// plan mirrors a layout with the minimum encoded size of every node, computed
// once per decode so vectors can bound their counts without re-walking the
// element layout.
type plan struct {
	min    int
	elem   *plan
	fields []*plan
	cases  [][]*plan
	inner  *plan
}

// newPlan builds the plan for l. Nodes below maxDepth are left nil; the
// decoder rejects them before it looks at their plan.
func newPlan(l layout.Layout, depth, maxDepth int) *plan {
	if depth > maxDepth {
		return nil
	}
	switch lt := l.(type) {
	case nil:
		return nil
	case layout.Vector:
		return &plan{min: 1, elem: newPlan(lt.Elem, depth+1, maxDepth)}
	case layout.Struct:
		p := &plan{fields: fieldPlans(lt.Fields, depth, maxDepth)}
		p.min = sumMin(p.fields)
		return p
	case layout.Variants:
		p := &plan{min: 1, cases: make([][]*plan, len(lt.Cases))}
		minCase := -1
		for i, c := range lt.Cases {
			p.cases[i] = fieldPlans(c, depth, maxDepth)
			if m := sumMin(p.cases[i]); minCase < 0 || m < minCase {
				minCase = m
			}
		}
		if minCase > 0 {
			p.min += minCase
		}
		return p
	case layout.Native:
		inner := newPlan(lt.Inner, depth+1, maxDepth)
		return &plan{min: inner.minSize(), inner: inner}
	default:
		return &plan{min: l.Kind().Width()}
	}
}

func fieldPlans(ls []layout.Layout, depth, maxDepth int) []*plan {
	out := make([]*plan, len(ls))
	for i, l := range ls {
		out[i] = newPlan(l, depth+1, maxDepth)
	}
	return out
}

func sumMin(ps []*plan) int {
	n := 0
	for _, p := range ps {
		n += p.minSize()
	}
	return n
}

func (p *plan) minSize() int {
	if p == nil {
		return 0
	}
	return p.min
}

func (p *plan) elemPlan() *plan {
	if p == nil {
		return nil
	}
	return p.elem
}

func (p *plan) innerPlan() *plan {
	if p == nil {
		return nil
	}
	return p.inner
}

func (p *plan) fieldList() []*plan {
	if p == nil {
		return nil
	}
	return p.fields
}

func (p *plan) casePlans(tag uint32) []*plan {
	if p == nil || int(tag) >= len(p.cases) {
		return nil
	}
	return p.cases[tag]
}

func (d *decoder) walk(l layout.Layout, p *plan, depth int) (value.Value, error) {
	if depth > d.c.limits.MaxDepth {
		return nil, errors.DepthExceeded(errors.PhaseDecode, nil, d.c.limits.MaxDepth)
	}

	switch lt := l.(type) {
	case nil:
		return nil, errors.InvalidData(errors.PhaseDecode, nil, "nil layout")
	case layout.U8:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, d.eof(1)
		}
		return value.U8(b), nil
	case layout.U16:
		x, err := d.r.ReadU16()
		if err != nil {
			return nil, d.eof(2)
		}
		return value.U16(x), nil
	case layout.U32:
		x, err := d.r.ReadU32()
		if err != nil {
			return nil, d.eof(4)
		}
		return value.U32(x), nil
	case layout.U64:
		x, err := d.r.ReadU64()
		if err != nil {
			return nil, d.eof(8)
		}
		return value.U64(x), nil
	case layout.U128:
		var x value.U128
		if err := d.r.ReadLimbs(x[:2]); err != nil {
			return nil, d.eof(16)
		}
		return x, nil
	case layout.U256:
		var x value.U256
		if err := d.r.ReadLimbs(x[:]); err != nil {
			return nil, d.eof(32)
		}
		return x, nil
	case layout.Bool:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, d.eof(1)
		}
		switch b {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		default:
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Value(b).
				Detail("invalid bool byte 0x%02x", b).
				Build()
		}
	case layout.Address:
		b, err := d.r.ReadN(value.AddressLength)
		if err != nil {
			return nil, d.eof(value.AddressLength)
		}
		var a value.Address
		copy(a[:], b)
		return a, nil
	case layout.Signer:
		b, err := d.r.ReadN(value.AddressLength)
		if err != nil {
			return nil, d.eof(value.AddressLength)
		}
		var s value.Signer
		copy(s[:], b)
		return s, nil
	case layout.Vector:
		return d.vector(lt, p, depth)
	case layout.Struct:
		fields, err := d.fields(lt.Fields, p.fieldList(), depth)
		if err != nil {
			return nil, err
		}
		return value.Struct{Fields: fields}, nil
	case layout.Variants:
		return d.variant(lt, p, depth)
	case layout.Native:
		return d.native(lt, p, depth)
	default:
		return nil, errors.InvalidData(errors.PhaseDecode, nil, "unknown layout "+l.String())
	}
}

func (d *decoder) vector(l layout.Vector, p *plan, depth int) (value.Value, error) {
	n, err := d.uleb()
	if err != nil {
		return nil, err
	}
	if n > d.c.limits.MaxVectorLength {
		return nil, errors.LimitExceeded(errors.PhaseDecode, nil, "vector length", uint64(n), uint64(d.c.limits.MaxVectorLength))
	}

	// Reject counts the remaining input cannot possibly hold before allocating.
	elemPlan := p.elemPlan()
	minElem := elemPlan.minSize()
	capacity := int(n)
	if minElem > 0 {
		if need := uint64(n) * uint64(minElem); need > uint64(d.r.Remaining()) {
			return nil, errors.UnexpectedEOF(errors.PhaseDecode, nil, int(min(need, uint64(maxInt))), d.r.Remaining())
		}
	} else if capacity > zeroSizePrealloc {
		capacity = zeroSizePrealloc
	}

	out := make(value.Vector, 0, capacity)
	for i := 0; i < int(n); i++ {
		elem, err := d.walk(l.Elem, elemPlan, depth+1)
		if err != nil {
			return nil, prefixPath(err, indexSegment(i))
		}
		out = append(out, elem)
	}
	return out, nil
}

func (d *decoder) fields(ls []layout.Layout, ps []*plan, depth int) ([]value.Value, error) {
	out := make([]value.Value, len(ls))
	for i, fl := range ls {
		var fp *plan
		if i < len(ps) {
			fp = ps[i]
		}
		v, err := d.walk(fl, fp, depth+1)
		if err != nil {
			return nil, prefixPath(err, indexSegment(i))
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) variant(l layout.Variants, p *plan, depth int) (value.Value, error) {
	if len(l.Cases) > layout.MaxVariants {
		return nil, errors.LimitExceeded(errors.PhaseDecode, nil, "variant count", uint64(len(l.Cases)), layout.MaxVariants)
	}
	tag, err := d.uleb()
	if err != nil {
		return nil, err
	}
	if uint64(tag) >= uint64(len(l.Cases)) {
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, nil, uint64(tag), len(l.Cases))
	}
	fields, err := d.fields(l.Cases[tag], p.casePlans(tag), depth)
	if err != nil {
		return nil, prefixPath(err, variantSegment(tag))
	}
	return value.Variant{Tag: tag, Fields: fields}, nil
}

func (d *decoder) native(l layout.Native, p *plan, depth int) (value.Value, error) {
	if d.inDelayed {
		return nil, errors.DelayedValue(errors.PhaseDecode, nil, 0, "native layout inside delayed content")
	}
	if d.c.mapper == nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindDelayedValue).
			LayoutType(l.String()).
			Detail("no delayed mapper configured").
			Build()
	}

	start := d.r.Position()
	d.inDelayed = true
	content, err := d.walk(l.Inner, p.innerPlan(), depth+1)
	d.inDelayed = false
	if err != nil {
		return nil, prefixPath(err, "native")
	}
	width := uint32(d.r.Position() - start)

	id, err := d.c.mapper.Identify(l.NativeKind, content, width)
	if err != nil {
		Logger().Debug("delayed value identification failed",
			zap.Stringer("kind", l.NativeKind),
			zap.Uint32("width", width),
			zap.Error(err))
		return nil, errors.New(errors.PhaseDecode, errors.KindDelayedValue).
			LayoutType(l.String()).
			Cause(err).
			Detail("identify %s content", l.NativeKind).
			Build()
	}
	return value.NewDelayed(id, width), nil
}

func (d *decoder) uleb() (uint32, error) {
	n, err := d.r.ReadULEB32()
	if err == nil {
		return n, nil
	}
	if stderrors.Is(err, binary.ErrEOF) {
		return 0, d.eof(1)
	}
	return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Cause(err).
		Detail("malformed uleb128 at offset %d", d.r.Position()).
		Build()
}

func (d *decoder) eof(need int) error {
	return errors.UnexpectedEOF(errors.PhaseDecode, nil, need, d.r.Remaining())
}

const maxInt = int(^uint(0) >> 1)
