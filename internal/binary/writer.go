package binary

import (
	"encoding/binary"
)

// Writer appends the wire encoding of primitives to a buffer. A counting
// Writer performs the same calls but only tracks the length, so encoding and
// size computation cannot drift apart.
type Writer struct {
	buf      []byte
	n        int
	counting bool
}

// NewWriter creates a Writer that accumulates bytes.
func NewWriter() *Writer {
	return &Writer{}
}

// NewCounter creates a Writer that only counts bytes.
func NewCounter() *Writer {
	return &Writer{counting: true}
}

// Bytes returns the written bytes. It is nil for a counting Writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.n
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.n++
	if !w.counting {
		w.buf = append(w.buf, b)
	}
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.n += len(data)
	if !w.counting {
		w.buf = append(w.buf, data...)
	}
}

// Skip accounts for n bytes without producing them. A buffering Writer pads
// with zeros instead.
func (w *Writer) Skip(n int) {
	w.n += n
	if !w.counting {
		w.buf = append(w.buf, make([]byte, n)...)
	}
}

// Counting reports whether w only tracks length.
func (w *Writer) Counting() bool {
	return w.counting
}

// WriteU16 writes a little-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	w.n += 2
	if !w.counting {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

// WriteU32 writes a little-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	w.n += 4
	if !w.counting {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

// WriteU64 writes a little-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	w.n += 8
	if !w.counting {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
}

// WriteLimbs writes 64-bit limbs little-endian, least significant first.
func (w *Writer) WriteLimbs(limbs []uint64) {
	for _, l := range limbs {
		w.WriteU64(l)
	}
}

// WriteULEB32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteULEB32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.Byte(b)
		if v == 0 {
			break
		}
	}
}

// ULEBSize returns the encoded length of v as ULEB128.
func ULEBSize(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// WriteName writes a LEB128 length-prefixed string.
func (w *Writer) WriteName(s string) {
	w.WriteULEB32(uint32(len(s)))
	w.WriteBytes([]byte(s))
}
