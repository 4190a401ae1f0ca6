package layout

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/vmcodec/errors"
)

// FromWIT derives a layout from a WIT type declaration.
//
//	bool, u8..u64      same primitive
//	string             struct{vector<u8>}
//	list<T>            vector<T>
//	record, tuple      struct{fields...}
//	variant            enum, one case per variant (payload or empty)
//	enum               enum of empty cases
//	option<T>          struct{vector<T>}
//	result<T, E>       enum{[T],[E]}
//
// Signed integers, floats, char, flags and resource handles have no counterpart.
func FromWIT(t wit.Type) (Layout, error) {
	return fromWIT(t, nil)
}

func fromWIT(t wit.Type, path []string) (Layout, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return Bool{}, nil
	case wit.U8:
		return U8{}, nil
	case wit.U16:
		return U16{}, nil
	case wit.U32:
		return U32{}, nil
	case wit.U64:
		return U64{}, nil
	case wit.String:
		return Struct{Fields: []Layout{Vector{Elem: U8{}}}}, nil
	case *wit.TypeDef:
		return fromTypeDef(typ, path)
	case nil:
		return nil, errors.InvalidData(errors.PhaseParse, path, "nil WIT type")
	default:
		return nil, unsupportedWIT(path, fmt.Sprintf("%T", t))
	}
}

func fromTypeDef(td *wit.TypeDef, path []string) (Layout, error) {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		fields := make([]Layout, 0, len(kind.Fields))
		for _, f := range kind.Fields {
			l, err := fromWIT(f.Type, append(path, f.Name))
			if err != nil {
				return nil, err
			}
			fields = append(fields, l)
		}
		return Struct{Fields: fields}, nil
	case *wit.Tuple:
		fields := make([]Layout, 0, len(kind.Types))
		for i, et := range kind.Types {
			l, err := fromWIT(et, appendIndex(path, i))
			if err != nil {
				return nil, err
			}
			fields = append(fields, l)
		}
		return Struct{Fields: fields}, nil
	case *wit.List:
		elem, err := fromWIT(kind.Type, append(path, "elem"))
		if err != nil {
			return nil, err
		}
		return Vector{Elem: elem}, nil
	case *wit.Option:
		elem, err := fromWIT(kind.Type, append(path, "some"))
		if err != nil {
			return nil, err
		}
		return Struct{Fields: []Layout{Vector{Elem: elem}}}, nil
	case *wit.Variant:
		cases := make([][]Layout, 0, len(kind.Cases))
		for _, c := range kind.Cases {
			if c.Type == nil {
				cases = append(cases, []Layout{})
				continue
			}
			l, err := fromWIT(c.Type, append(path, c.Name))
			if err != nil {
				return nil, err
			}
			cases = append(cases, []Layout{l})
		}
		return checkVariants(Variants{Cases: cases}, path)
	case *wit.Enum:
		cases := make([][]Layout, len(kind.Cases))
		for i := range cases {
			cases[i] = []Layout{}
		}
		return checkVariants(Variants{Cases: cases}, path)
	case *wit.Result:
		ok, err := optionalCase(kind.OK, append(path, "ok"))
		if err != nil {
			return nil, err
		}
		failed, err := optionalCase(kind.Err, append(path, "err"))
		if err != nil {
			return nil, err
		}
		return Variants{Cases: [][]Layout{ok, failed}}, nil
	case wit.Type:
		return fromWIT(kind, path)
	default:
		return nil, unsupportedWIT(path, fmt.Sprintf("%T", td.Kind))
	}
}

func optionalCase(t wit.Type, path []string) ([]Layout, error) {
	if t == nil {
		return []Layout{}, nil
	}
	l, err := fromWIT(t, path)
	if err != nil {
		return nil, err
	}
	return []Layout{l}, nil
}

func checkVariants(v Variants, path []string) (Layout, error) {
	if len(v.Cases) > MaxVariants {
		return nil, errors.LimitExceeded(errors.PhaseParse, path, "variant count", uint64(len(v.Cases)), MaxVariants)
	}
	return v, nil
}

func unsupportedWIT(path []string, what string) error {
	return errors.New(errors.PhaseParse, errors.KindUnsupported).
		Path(path...).
		LayoutType(what).
		Detail("no layout for WIT type").
		Build()
}
