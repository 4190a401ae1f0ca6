package layout

import (
	"fmt"
	"strings"

	"github.com/wippyai/vmcodec/errors"
)

// Parse reads a layout from its text form, the same syntax String produces:
//
//	u8 u16 u32 u64 u128 u256 bool address signer
//	vector<L>
//	struct{L,L,...}
//	enum{[L,...],[],...}
//	aggregator<L> snapshot<L> derived_string<L>
//
// Whitespace between tokens is ignored.
func Parse(text string) (Layout, error) {
	p := &parser{src: text}
	l, err := p.layout(1)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q after layout", p.src[p.pos:])
	}
	return l, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) Layout {
	l, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return l
}

// maxParseDepth stops pathological inputs from exhausting the stack.
const maxParseDepth = 256

type parser struct {
	src string
	pos int
}

var primitives = map[string]Layout{
	"u8":      U8{},
	"u16":     U16{},
	"u32":     U32{},
	"u64":     U64{},
	"u128":    U128{},
	"u256":    U256{},
	"bool":    Bool{},
	"address": Address{},
	"signer":  Signer{},
}

var natives = map[string]NativeKind{
	"aggregator":     Aggregator,
	"snapshot":       Snapshot,
	"derived_string": DerivedString,
}

func (p *parser) layout(depth int) (Layout, error) {
	if depth > maxParseDepth {
		return nil, p.errorf("nesting deeper than %d", maxParseDepth)
	}
	word := p.ident()
	if word == "" {
		return nil, p.errorf("expected layout")
	}
	if l, ok := primitives[word]; ok {
		return l, nil
	}
	switch word {
	case "vector":
		elem, err := p.wrapped('<', '>', depth)
		if err != nil {
			return nil, err
		}
		return Vector{Elem: elem}, nil
	case "struct":
		if err := p.expect('{'); err != nil {
			return nil, err
		}
		fields, err := p.list('}', depth)
		if err != nil {
			return nil, err
		}
		return Struct{Fields: fields}, nil
	case "enum":
		return p.variants(depth)
	}
	if kind, ok := natives[word]; ok {
		inner, err := p.wrapped('<', '>', depth)
		if err != nil {
			return nil, err
		}
		return Native{NativeKind: kind, Inner: inner}, nil
	}
	return nil, p.errorf("unknown layout %q", word)
}

func (p *parser) variants(depth int) (Layout, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var cases [][]Layout
	if p.consume('}') {
		return Variants{Cases: cases}, nil
	}
	for {
		if err := p.expect('['); err != nil {
			return nil, err
		}
		fields, err := p.list(']', depth)
		if err != nil {
			return nil, err
		}
		cases = append(cases, fields)
		if p.consume('}') {
			return Variants{Cases: cases}, nil
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
	}
}

// list parses comma separated layouts up to and including the closing byte.
func (p *parser) list(closing byte, depth int) ([]Layout, error) {
	var out []Layout
	if p.consume(closing) {
		return out, nil
	}
	for {
		l, err := p.layout(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
		if p.consume(closing) {
			return out, nil
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
	}
}

func (p *parser) wrapped(open, closing byte, depth int) (Layout, error) {
	if err := p.expect(open); err != nil {
		return nil, err
	}
	l, err := p.layout(depth + 1)
	if err != nil {
		return nil, err
	}
	if err := p.expect(closing); err != nil {
		return nil, err
	}
	return l, nil
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	if !p.consume(c) {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of text", c)
		}
		return p.errorf("expected %q, got %q", c, p.src[p.pos])
	}
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidInput).
		Detail("layout at offset %d: %s", p.pos, fmt.Sprintf(format, args...)).
		Build()
}
