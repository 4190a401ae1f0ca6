package value

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/layout"
)

// ParseJSON reads a value in its JSON text form, guided by l:
//
//	u8..u256           number or decimal string
//	bool               true / false
//	address, signer    "0x..." hex string
//	vector<T>          array; vector<u8> also accepts a "0x..." hex string
//	struct{...}        array of fields
//	enum{...}          {"tag": n, "fields": [...]}
//	native<T>          {"delayed": id, "width": w}
func ParseJSON(data []byte, l layout.Layout) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.ParseFailed("value JSON", err)
	}
	return fromJSON(raw, l, nil)
}

func fromJSON(raw any, l layout.Layout, path []string) (Value, error) {
	switch t := l.(type) {
	case layout.U8:
		n, err := jsonUint(raw, 8, path)
		return U8(n), err
	case layout.U16:
		n, err := jsonUint(raw, 16, path)
		return U16(n), err
	case layout.U32:
		n, err := jsonUint(raw, 32, path)
		return U32(n), err
	case layout.U64:
		n, err := jsonUint(raw, 64, path)
		return U64(n), err
	case layout.U128:
		x, err := jsonBig(raw, path)
		if err != nil {
			return nil, err
		}
		return U128FromInt(x)
	case layout.U256:
		x, err := jsonBig(raw, path)
		if err != nil {
			return nil, err
		}
		return U256(*x), nil
	case layout.Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, jsonMismatch(path, raw, l)
		}
		return Bool(b), nil
	case layout.Address:
		a, err := jsonAddress(raw, l, path)
		return a, err
	case layout.Signer:
		a, err := jsonAddress(raw, l, path)
		return Signer(a), err
	case layout.Vector:
		return vectorFromJSON(raw, t, path)
	case layout.Struct:
		items, ok := raw.([]any)
		if !ok {
			return nil, jsonMismatch(path, raw, l)
		}
		fields, err := listFromJSON(items, t.Fields, path)
		if err != nil {
			return nil, err
		}
		return Struct{Fields: fields}, nil
	case layout.Variants:
		return variantFromJSON(raw, t, path)
	case layout.Native:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, jsonMismatch(path, raw, l)
		}
		id, err := jsonUint(obj["delayed"], 64, append(path, "delayed"))
		if err != nil {
			return nil, err
		}
		width, err := jsonUint(obj["width"], 32, append(path, "width"))
		if err != nil {
			return nil, err
		}
		return NewDelayed(id, uint32(width)), nil
	default:
		return nil, errors.InvalidInput(errors.PhaseParse, fmt.Sprintf("unsupported layout %v", l))
	}
}

func vectorFromJSON(raw any, l layout.Vector, path []string) (Value, error) {
	if s, ok := raw.(string); ok {
		if _, isByte := l.Elem.(layout.U8); isByte {
			b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
			if err != nil {
				return nil, errors.ParseFailed("byte vector at "+strings.Join(path, "."), err)
			}
			return Bytes(b), nil
		}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, jsonMismatch(path, raw, l)
	}
	out := make(Vector, len(items))
	for i, item := range items {
		v, err := fromJSON(item, l.Elem, append(path, "["+strconv.Itoa(i)+"]"))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func variantFromJSON(raw any, l layout.Variants, path []string) (Value, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, jsonMismatch(path, raw, l)
	}
	tag, err := jsonUint(obj["tag"], 32, append(path, "tag"))
	if err != nil {
		return nil, err
	}
	if tag >= uint64(len(l.Cases)) {
		return nil, errors.InvalidDiscriminant(errors.PhaseParse, path, tag, len(l.Cases))
	}
	items, _ := obj["fields"].([]any)
	if obj["fields"] != nil && items == nil {
		return nil, jsonMismatch(append(path, "fields"), obj["fields"], l)
	}
	fields, err := listFromJSON(items, l.Cases[tag], path)
	if err != nil {
		return nil, err
	}
	return Variant{Tag: uint32(tag), Fields: fields}, nil
}

func listFromJSON(items []any, ls []layout.Layout, path []string) ([]Value, error) {
	if len(items) != len(ls) {
		return nil, errors.New(errors.PhaseParse, errors.KindShapeMismatch).
			Path(path...).
			Detail("expected %d fields, got %d", len(ls), len(items)).
			Build()
	}
	out := make([]Value, len(items))
	for i, item := range items {
		v, err := fromJSON(item, ls[i], append(path, "["+strconv.Itoa(i)+"]"))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func jsonUint(raw any, bits int, path []string) (uint64, error) {
	var text string
	switch t := raw.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = t
	default:
		return 0, jsonMismatch(path, raw, nil)
	}
	n, err := strconv.ParseUint(text, 10, bits)
	if err != nil {
		return 0, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path(path...).
			Cause(err).
			Detail("invalid u%d %q", bits, text).
			Build()
	}
	return n, nil
}

func jsonBig(raw any, path []string) (*uint256.Int, error) {
	var text string
	switch t := raw.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = t
	default:
		return nil, jsonMismatch(path, raw, nil)
	}
	x, err := uint256.FromDecimal(text)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Path(path...).
			Cause(err).
			Detail("invalid integer %q", text).
			Build()
	}
	return x, nil
}

func jsonAddress(raw any, l layout.Layout, path []string) (Address, error) {
	s, ok := raw.(string)
	if !ok {
		return Address{}, jsonMismatch(path, raw, l)
	}
	return ParseAddress(s)
}

func jsonMismatch(path []string, raw any, l layout.Layout) error {
	b := errors.New(errors.PhaseParse, errors.KindShapeMismatch).
		Path(path...).
		ValueType(fmt.Sprintf("%T", raw))
	if l != nil {
		b = b.LayoutType(l.String())
	}
	return b.Build()
}

// ToJSON converts v into a tree of JSON-marshalable values, the inverse of ParseJSON.
// Integers wider than 32 bits are rendered as decimal strings.
func ToJSON(v Value) any {
	switch x := v.(type) {
	case U8:
		return uint64(x)
	case U16:
		return uint64(x)
	case U32:
		return uint64(x)
	case U64:
		if uint64(x) <= math.MaxUint32 {
			return uint64(x)
		}
		return strconv.FormatUint(uint64(x), 10)
	case U128:
		return x.Int().Dec()
	case U256:
		return x.Int().Dec()
	case Bool:
		return bool(x)
	case Address:
		return x.ShortString()
	case Signer:
		return Address(x).ShortString()
	case Vector:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToJSON(e)
		}
		return out
	case Struct:
		return listToJSON(x.Fields)
	case Variant:
		return map[string]any{"tag": x.Tag, "fields": listToJSON(x.Fields)}
	case Delayed:
		return map[string]any{"delayed": strconv.FormatUint(x.Handle.ID, 10), "width": x.Handle.Width}
	default:
		return nil
	}
}

func listToJSON(vs []Value) []any {
	out := make([]any, len(vs))
	for i, e := range vs {
		out[i] = ToJSON(e)
	}
	return out
}
