package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseEncode,
				Kind:       KindShapeMismatch,
				Path:       []string{"[1]", "variant(2)", "0"},
				ValueType:  "u8",
				LayoutType: "u16",
				Detail:     "field count differs",
			},
			contains: []string{"[encode]", "shape_mismatch", "[1].variant(2).0", "value u8", "layout u16", "field count differs"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindUnexpectedEOF,
			},
			contains: []string{"[decode]", "unexpected_eof"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseStorage,
				Kind:   KindStorageBackend,
				Detail: "read module",
				Cause:  errors.New("disk on fire"),
			},
			contains: []string{"[storage]", "storage_backend", "read module", "caused by", "disk on fire"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindDeserialization,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindInvalidDiscriminant,
		Path:  []string{"[0]"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindInvalidDiscriminant}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindInvalidDiscriminant}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindUnexpectedEOF}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidDiscriminant}) {
		t.Error("errors.Is should match")
	}
}

func TestKindOf(t *testing.T) {
	inner := ShapeMismatch(PhaseSize, nil, "u8", "u16")
	wrapped := fmt.Errorf("outer: %w", inner)

	if got := KindOf(wrapped); got != KindShapeMismatch {
		t.Errorf("KindOf = %q, want %q", got, KindShapeMismatch)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestIsKind(t *testing.T) {
	cause := DelayedValue(PhaseResolve, nil, 7, "unknown id")
	err := New(PhaseEncode, KindDelayedValue).Cause(cause).Build()
	chained := Verification("verify module", Deserialization("bad header", nil))

	if !IsKind(err, KindDelayedValue) {
		t.Error("IsKind should match outer kind")
	}
	if !IsKind(chained, KindDeserialization) {
		t.Error("IsKind should match a kind deeper in the chain")
	}
	if IsKind(err, KindNotFound) {
		t.Error("IsKind should not match absent kind")
	}
	if IsKind(nil, KindNotFound) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindShapeMismatch).
		Path("[0]", "native").
		ValueType("u64").
		LayoutType("aggregator<u64>").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "delayed", "u64").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindShapeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindShapeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "[0]" || err.Path[1] != "native" {
		t.Errorf("Path = %v, want [[0] native]", err.Path)
	}
	if err.ValueType != "u64" || err.LayoutType != "aggregator<u64>" {
		t.Errorf("ValueType=%v LayoutType=%v", err.ValueType, err.LayoutType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected delayed, got u64" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidDiscriminant", func(t *testing.T) {
		err := InvalidDiscriminant(PhaseDecode, []string{"[0]"}, 3, 3)
		if err.Kind != KindInvalidDiscriminant {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidDiscriminant)
		}
		if !strings.Contains(err.Error(), "invalid value") {
			t.Errorf("message %q should mention invalid value", err.Error())
		}
	})

	t.Run("UnexpectedEOF", func(t *testing.T) {
		err := UnexpectedEOF(PhaseDecode, nil, 8, 1)
		if err.Kind != KindUnexpectedEOF {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnexpectedEOF)
		}
		if !strings.Contains(err.Error(), "end of input") {
			t.Errorf("message %q should mention end of input", err.Error())
		}
	})

	t.Run("DelayedValue", func(t *testing.T) {
		err := DelayedValue(PhaseEncode, nil, 12, "width %d, want %d", 7, 8)
		if err.Kind != KindDelayedValue {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDelayedValue)
		}
		if err.Detail != "delayed field 12: width 7, want 8" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("DepthExceeded", func(t *testing.T) {
		err := DepthExceeded(PhaseDecode, nil, 128)
		if err.Kind != KindDepthExceeded || err.Value != 128 {
			t.Errorf("Kind=%v Value=%v", err.Kind, err.Value)
		}
	})

	t.Run("LimitExceeded", func(t *testing.T) {
		err := LimitExceeded(PhaseDecode, nil, "vector length", 10, 5)
		if err.Kind != KindLimitExceeded {
			t.Errorf("Kind = %v, want %v", err.Kind, KindLimitExceeded)
		}
		if !strings.Contains(err.Detail, "vector length 10") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseStorage, "module", "0x1::coin")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
	})

	t.Run("module phases", func(t *testing.T) {
		if err := Deserialization("x", nil); err.Phase != PhaseLoad || err.Kind != KindDeserialization {
			t.Errorf("Deserialization = %v/%v", err.Phase, err.Kind)
		}
		if err := Verification("x", nil); err.Phase != PhaseVerify || err.Kind != KindVerification {
			t.Errorf("Verification = %v/%v", err.Phase, err.Kind)
		}
		if err := StorageBackend("x", nil); err.Phase != PhaseStorage || err.Kind != KindStorageBackend {
			t.Errorf("StorageBackend = %v/%v", err.Phase, err.Kind)
		}
	})
}
