// Package codec converts runtime values to and from their binary wire format.
//
// Every operation is driven by a caller-supplied layout.Layout; the codec never
// infers shape from a value or from bytes.
//
// # Wire Format
//
//	Layout              Encoding
//	─────────────────────────────────────────────────────────
//	u8 u16 u32 u64      fixed width, little-endian
//	u128 u256           16 / 32 bytes, little-endian
//	bool                one byte, 0 or 1
//	address signer      32 bytes
//	vector<T>           ULEB128 count, then each element
//	struct{...}         fields in order, no prefix
//	enum{...}           ULEB128 discriminant, then the selected case's fields
//	native<T>           the delayed value's content encoded against T
//
// # Delayed Values
//
// A value.Delayed stands in for content held by an external store. Encoding
// asks the DelayedStore to describe and then materialize the content, which
// must encode to exactly the handle's width. Size only consults Describe, so
// it never renders content. Decoding reads the content against the native
// layout's inner shape and asks the DelayedMapper for the id it belongs to.
//
//	c := codec.New(
//	    codec.WithDelayedStore(store),
//	    codec.WithDelayedMapper(store),
//	)
//	data, err := c.Encode(v, l)
//
// A Codec without a store rejects delayed values with a KindDelayedValue error.
//
// # Errors
//
// All failures are *errors.Error values with a field path such as
// "[2].variant(1).[0]". No partial value or partial output is ever returned,
// and malformed input never causes a panic.
//
// # Trailing Bytes
//
// Decode requires the value to consume the whole input. DecodePrefix accepts
// trailing bytes and reports how many bytes the value occupied.
package codec
