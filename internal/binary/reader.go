// Package binary implements byte-level reading and writing shared by the value
// codec and the module container parser: fixed-width little-endian integers
// and unsigned LEB128.
package binary

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"
)

// Read errors. The codec maps these onto its structured error kinds.
var (
	ErrEOF          = errors.New("unexpected end of input")
	ErrOverflow     = errors.New("uleb128: overflow")
	ErrNonCanonical = errors.New("uleb128: non-canonical encoding")
	ErrInvalidUTF8  = errors.New("name is not valid UTF-8")
)

// MaxULEB32Bytes is the longest ULEB128 encoding of a uint32.
const MaxULEB32Bytes = 5

// Reader consumes a byte slice left to right with position tracking.
// It never reads past the end of its input and never panics on short data.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the number of bytes consumed.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadN returns the next n bytes without copying.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadLimbs reads n little-endian 64-bit limbs, least significant first.
func (r *Reader) ReadLimbs(dst []uint64) error {
	b, err := r.ReadN(8 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return nil
}

// ReadULEB32 reads a canonical unsigned LEB128 value that fits in 32 bits.
// Encodings with redundant trailing zero groups are rejected.
func (r *Reader) ReadULEB32() (uint32, error) {
	var result uint64
	var shift uint
	for i := 0; i < MaxULEB32Bytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if i > 0 && b == 0 {
				return 0, ErrNonCanonical
			}
			if result > 0xffffffff {
				return 0, ErrOverflow
			}
			return uint32(result), nil
		}
		shift += 7
	}
	return 0, ErrOverflow
}

// ReadLEB32 reads an unsigned LEB128 value that fits in 32 bits, accepting
// padded encodings of up to five bytes as WebAssembly tooling emits them.
func (r *Reader) ReadLEB32() (uint32, error) {
	var result uint64
	var shift uint
	for i := 0; i < MaxULEB32Bytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if result > 0xffffffff {
				return 0, ErrOverflow
			}
			return uint32(result), nil
		}
		shift += 7
	}
	return 0, ErrOverflow
}

// ReadName reads a LEB128 length-prefixed UTF-8 string.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadLEB32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadN(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
