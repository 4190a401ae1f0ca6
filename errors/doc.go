// Package errors provides structured error types for the vmcodec library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, value and layout names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindShapeMismatch).
//		Path("[2]", "variant(1)", "0").
//		ValueType("u8").
//		LayoutType("u16").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ShapeMismatch(errors.PhaseEncode, path, "u8", "u16")
//	err := errors.UnexpectedEOF(errors.PhaseDecode, path, 8, 3)
//
// Every failure the codec or module storage can produce maps to exactly one Kind,
// so callers can decide per kind whether an error is fatal:
//
//	if errors.IsKind(err, errors.KindInvalidDiscriminant) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
