package delayed

import (
	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/value"
)

// MaxDerivedStringWidth bounds the serialized width of a derived string.
const MaxDerivedStringWidth = 1024

// MinDerivedStringWidth returns the smallest width that holds a string of n bytes.
func MinDerivedStringWidth(n int) uint32 {
	return uint32(ulebSize(uint32(n)) + n + 1)
}

// DerivedStringContent builds the content of a derived string: the bytes
// wrapped as a string struct, followed by zero padding so that the whole
// content encodes to exactly width bytes.
func DerivedStringContent(b []byte, width uint32) (value.Value, error) {
	pad, err := derivedPadding(len(b), width)
	if err != nil {
		return nil, err
	}
	return value.NewStruct(
		value.NewStruct(value.Bytes(b)),
		value.Bytes(make([]byte, pad)),
	), nil
}

// DerivedStringBytes extracts the string bytes from derived string content and
// checks that its padding is well formed for width.
func DerivedStringBytes(content value.Value, width uint32) ([]byte, error) {
	outer, ok := content.(value.Struct)
	if !ok || len(outer.Fields) != 2 {
		return nil, malformedDerived("expected struct of string and padding")
	}
	str, ok := outer.Fields[0].(value.Struct)
	if !ok || len(str.Fields) != 1 {
		return nil, malformedDerived("expected string struct")
	}
	b, err := byteVector(str.Fields[0])
	if err != nil {
		return nil, err
	}
	padding, err := byteVector(outer.Fields[1])
	if err != nil {
		return nil, err
	}
	for _, p := range padding {
		if p != 0 {
			return nil, malformedDerived("non-zero padding")
		}
	}
	pad, err := derivedPadding(len(b), width)
	if err != nil {
		return nil, err
	}
	if pad != len(padding) {
		return nil, malformedDerived("padding does not match width")
	}
	return b, nil
}

// derivedPadding returns the number of zero bytes L whose vector, length
// prefix included, fills what the string leaves of width: uleb(L) + L equals
// width - uleb(n) - n. Some widths have no such L, e.g. a remainder of 129.
func derivedPadding(n int, width uint32) (int, error) {
	if width > MaxDerivedStringWidth {
		return 0, errors.LimitExceeded(errors.PhaseResolve, nil, "derived string width", uint64(width), MaxDerivedStringWidth)
	}
	rest := int(width) - ulebSize(uint32(n)) - n
	for k := 1; k <= 5 && k <= rest; k++ {
		if pad := rest - k; ulebSize(uint32(pad)) == k {
			return pad, nil
		}
	}
	return 0, errors.New(errors.PhaseResolve, errors.KindDelayedValue).
		Detail("string of %d bytes does not fit width %d", n, width).
		Build()
}

func byteVector(v value.Value) ([]byte, error) {
	b, ok := value.AsBytes(v)
	if !ok {
		return nil, malformedDerived("expected vector<u8>")
	}
	return b, nil
}

func malformedDerived(detail string) error {
	return errors.New(errors.PhaseResolve, errors.KindDelayedValue).
		Detail("malformed derived string: %s", detail).
		Build()
}

func ulebSize(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
