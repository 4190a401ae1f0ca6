package codec

import (
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

// Default limits.
const (
	DefaultMaxDepth        = 128
	DefaultMaxVectorLength = 1<<31 - 1
)

// DelayedStore resolves delayed values during encoding and size computation.
type DelayedStore interface {
	// Describe returns the kind and serialized width of id without rendering its content.
	Describe(id uint64) (layout.NativeKind, uint32, error)
	// Materialize returns the current content of id, shaped by the Inner layout of
	// the Native position it occupies.
	Materialize(id uint64) (layout.NativeKind, value.Value, error)
}

// DelayedMapper binds decoded native content to a delayed value id.
type DelayedMapper interface {
	Identify(kind layout.NativeKind, content value.Value, width uint32) (uint64, error)
}

// Limits bounds the work a single operation may perform.
type Limits struct {
	// MaxDepth is the deepest nesting of layout nodes; a primitive at the root is depth 1.
	MaxDepth int
	// MaxVectorLength is the largest element count accepted for any vector.
	MaxVectorLength uint32
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:        DefaultMaxDepth,
		MaxVectorLength: DefaultMaxVectorLength,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxVectorLength == 0 {
		l.MaxVectorLength = DefaultMaxVectorLength
	}
	return l
}

// Option configures a Codec.
type Option func(*Codec)

// WithDelayedStore enables encoding and sizing of delayed values.
func WithDelayedStore(s DelayedStore) Option {
	return func(c *Codec) {
		c.store = s
	}
}

// WithDelayedMapper enables decoding of Native layout positions.
func WithDelayedMapper(m DelayedMapper) Option {
	return func(c *Codec) {
		c.mapper = m
	}
}

// WithLimits overrides the default limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(c *Codec) {
		c.limits = l.withDefaults()
	}
}

// Codec encodes, decodes and sizes values against layouts.
// A Codec is immutable after New and safe for concurrent use.
type Codec struct {
	store  DelayedStore
	mapper DelayedMapper
	limits Limits
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limits returns the limits in effect.
func (c *Codec) Limits() Limits {
	return c.limits
}

var defaultCodec = New()

// Encode encodes v against l with a codec that has no delayed store.
func Encode(v value.Value, l layout.Layout) ([]byte, error) {
	return defaultCodec.Encode(v, l)
}

// Decode decodes data against l with a codec that has no delayed mapper.
func Decode(data []byte, l layout.Layout) (value.Value, error) {
	return defaultCodec.Decode(data, l)
}

// DecodePrefix decodes a value from the front of data and reports the bytes consumed.
func DecodePrefix(data []byte, l layout.Layout) (value.Value, int, error) {
	return defaultCodec.DecodePrefix(data, l)
}

// Size returns the encoded length of v against l with a codec that has no delayed store.
func Size(v value.Value, l layout.Layout) (int, error) {
	return defaultCodec.Size(v, l)
}
