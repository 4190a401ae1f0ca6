package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode   Phase = "encode"   // value to bytes
	PhaseDecode   Phase = "decode"   // bytes to value
	PhaseSize     Phase = "size"     // serialized size computation
	PhaseValidate Phase = "validate" // layout validation
	PhaseResolve  Phase = "resolve"  // delayed value store lookups
	PhaseLoad     Phase = "load"     // module deserialization
	PhaseVerify   Phase = "verify"   // module verification
	PhaseStorage  Phase = "storage"  // module storage backend
	PhaseParse    Phase = "parse"    // layout/value text parsing
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindDeserialization     Kind = "deserialization"
	KindVerification        Kind = "verification"
	KindStorageBackend      Kind = "storage_backend"
	KindShapeMismatch       Kind = "shape_mismatch"
	KindInvalidDiscriminant Kind = "invalid_discriminant"
	KindUnexpectedEOF       Kind = "unexpected_eof"
	KindDelayedValue        Kind = "delayed_value"
	KindInvalidData         Kind = "invalid_data"
	KindDepthExceeded       Kind = "depth_exceeded"
	KindLimitExceeded       Kind = "limit_exceeded"
	KindInvalidInput        Kind = "invalid_input"
	KindUnsupported         Kind = "unsupported"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	ValueType  string
	LayoutType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.ValueType != "" || e.LayoutType != "" {
		b.WriteString(": ")
		if e.ValueType != "" && e.LayoutType != "" {
			b.WriteString("value ")
			b.WriteString(e.ValueType)
			b.WriteString(", layout ")
			b.WriteString(e.LayoutType)
		} else if e.ValueType != "" {
			b.WriteString("value ")
			b.WriteString(e.ValueType)
		} else {
			b.WriteString("layout ")
			b.WriteString(e.LayoutType)
		}
	}

	if e.Detail != "" {
		if e.ValueType != "" || e.LayoutType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// ValueType sets the runtime value name
func (b *Builder) ValueType(t string) *Builder {
	b.err.ValueType = t
	return b
}

// LayoutType sets the layout name
func (b *Builder) LayoutType(t string) *Builder {
	b.err.LayoutType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Codec convenience constructors

// ShapeMismatch creates a value/layout structural disagreement error
func ShapeMismatch(phase Phase, path []string, valueType, layoutType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindShapeMismatch,
		Path:       path,
		ValueType:  valueType,
		LayoutType: layoutType,
	}
}

// InvalidDiscriminant creates an error for a variant tag outside the declared cases.
func InvalidDiscriminant(phase Phase, path []string, tag uint64, variants int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidDiscriminant,
		Path:   path,
		Detail: fmt.Sprintf("invalid value: discriminant %d out of range (%d variants)", tag, variants),
		Value:  tag,
	}
}

// UnexpectedEOF creates an error for input that ends before a layout step is complete.
func UnexpectedEOF(phase Phase, path []string, need, remaining int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEOF,
		Path:   path,
		Detail: fmt.Sprintf("unexpected end of input: need %d bytes, %d remaining", need, remaining),
	}
}

// DelayedValue creates a delayed value resolution error
func DelayedValue(phase Phase, path []string, id uint64, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindDelayedValue,
		Path:   path,
		Detail: fmt.Sprintf("delayed field %d: %s", id, detail),
		Value:  id,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// DepthExceeded creates an error for values or layouts nested beyond the configured ceiling.
func DepthExceeded(phase Phase, path []string, maxDepth int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDepthExceeded,
		Path:   path,
		Detail: fmt.Sprintf("nesting exceeds maximum depth %d", maxDepth),
		Value:  maxDepth,
	}
}

// LimitExceeded creates an error for a count above a configured limit
func LimitExceeded(phase Phase, path []string, what string, value, limit uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLimitExceeded,
		Path:   path,
		Detail: fmt.Sprintf("%s %d exceeds limit %d", what, value, limit),
		Value:  value,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Module storage convenience constructors

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Deserialization creates a malformed module error
func Deserialization(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindDeserialization,
		Detail: detail,
		Cause:  cause,
	}
}

// Verification creates a verifier rejection error
func Verification(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindVerification,
		Detail: detail,
		Cause:  cause,
	}
}

// StorageBackend creates a storage I/O error
func StorageBackend(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseStorage,
		Kind:   KindStorageBackend,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
