package module

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/internal/binary"
	"github.com/wippyai/vmcodec/value"
)

var (
	wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// (module (func (export "run")))
	runWasm = concat(wasmHeader,
		[]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00},
		[]byte{0x03, 0x02, 0x01, 0x00},
		[]byte{0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x00},
		[]byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b},
	)

	// Declares a function of a type that does not exist and has no body.
	invalidWasm = concat(wasmHeader, []byte{0x03, 0x02, 0x01, 0x00})
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func customSection(name string, payload []byte) []byte {
	body := binary.NewWriter()
	body.WriteName(name)
	body.WriteBytes(payload)
	w := binary.NewWriter()
	w.Byte(0)
	w.WriteULEB32(uint32(body.Len()))
	w.WriteBytes(body.Bytes())
	return w.Bytes()
}

func mustAssemble(t *testing.T, addr string, name string, md []Metadata, wasm []byte) []byte {
	t.Helper()
	code, err := Assemble(value.MustParseAddress(addr), name, md, wasm)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return code
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"counter", true},
		{"_private", true},
		{"Coin2", true},
		{"a", true},
		{strings.Repeat("x", MaxNameLength), true},
		{"", false},
		{"2fast", false},
		{"with-dash", false},
		{"with space", false},
		{"ünicode", false},
		{strings.Repeat("x", MaxNameLength+1), false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.ok && err != nil {
			t.Errorf("ValidateName(%q) = %v", tt.name, err)
		}
		if !tt.ok && !errors.IsKind(err, errors.KindInvalidInput) {
			t.Errorf("ValidateName(%q) = %v, want invalid input", tt.name, err)
		}
	}
}

func TestAssembleAndDeserialize(t *testing.T) {
	md := []Metadata{
		{Key: []byte("version"), Value: []byte{1}},
		{Key: []byte("author"), Value: []byte("vm")},
	}
	code := mustAssemble(t, "0x1", "counter", md, runWasm)

	m, err := Deserialize(code)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if m.Address != value.MustParseAddress("0x1") || m.Name != "counter" {
		t.Errorf("identity = %s::%s", m.Address.ShortString(), m.Name)
	}
	if m.QualifiedName() != "0x1::counter" {
		t.Errorf("QualifiedName = %q", m.QualifiedName())
	}
	if len(m.Metadata) != 2 || !bytes.Equal(m.Metadata[0].Key, []byte("version")) || !bytes.Equal(m.Metadata[1].Value, []byte("vm")) {
		t.Errorf("metadata = %+v", m.Metadata)
	}
	if len(m.Exports) != 1 || m.Exports[0] != (Export{Name: "run", Kind: ExportFunc, Index: 0}) {
		t.Errorf("exports = %+v", m.Exports)
	}
	if got := m.FunctionExports(); len(got) != 1 || got[0] != "run" {
		t.Errorf("FunctionExports = %v", got)
	}
	if m.Size() != len(code) {
		t.Errorf("Size = %d, want %d", m.Size(), len(code))
	}

	want, err := ContentID(code)
	if err != nil {
		t.Fatalf("ContentID: %v", err)
	}
	if !m.ID.Equals(want) || m.ID.Prefix().Codec != cid.Raw || m.ID.Version() != 1 {
		t.Errorf("ID = %s, want CIDv1 raw %s", m.ID, want)
	}
}

func TestAssembleWithoutMetadata(t *testing.T) {
	m, err := Deserialize(mustAssemble(t, "0xcafe", "empty", nil, wasmHeader))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(m.Metadata) != 0 || len(m.Exports) != 0 {
		t.Errorf("unexpected content: %+v", m)
	}
}

func TestAssembleErrors(t *testing.T) {
	addr := value.MustParseAddress("0x1")
	assembled := mustAssemble(t, "0x1", "m", nil, runWasm)

	tests := []struct {
		name string
		mod  string
		wasm []byte
	}{
		{"bad name", "1m", runWasm},
		{"not wasm", "m", []byte("not wasm at all")},
		{"already assembled", "m", assembled},
		{"truncated section", "m", concat(wasmHeader, []byte{0x01, 0x09, 0x01})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Assemble(addr, tt.mod, nil, tt.wasm); err == nil {
				t.Error("Assemble should fail")
			}
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	identity, err := encodeIdentity(value.MustParseAddress("0x1"), "m")
	if err != nil {
		t.Fatalf("encodeIdentity: %v", err)
	}
	badName, err := encodeIdentity(value.MustParseAddress("0x1"), "bad name")
	if err != nil {
		t.Fatalf("encodeIdentity: %v", err)
	}
	ident := customSection(IdentitySection, identity)

	tests := []struct {
		name string
		code []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}},
		{"bad version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}},
		{"missing identity", runWasm},
		{"duplicate identity", concat(wasmHeader, ident, ident)},
		{"malformed identity", concat(wasmHeader, customSection(IdentitySection, []byte{1, 2, 3}))},
		{"identity trailing bytes", concat(wasmHeader, customSection(IdentitySection, append(bytes.Clone(identity), 0)))},
		{"invalid name", concat(wasmHeader, customSection(IdentitySection, badName))},
		{"malformed metadata", concat(wasmHeader, ident, customSection(MetadataSection, []byte{0xff, 0xff}))},
		{"truncated section", concat(wasmHeader, ident, []byte{0x01, 0x10, 0x00})},
		{"truncated size", concat(wasmHeader, ident, []byte{0x01, 0x80})},
		{"unknown section", concat(wasmHeader, ident, []byte{0x20, 0x00})},
		{"out of order", concat(wasmHeader, ident, []byte{0x03, 0x02, 0x01, 0x00}, []byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00})},
		{"bad export kind", concat(wasmHeader, ident, []byte{0x07, 0x05, 0x01, 0x01, 'f', 0x09, 0x00})},
		{"duplicate export", concat(wasmHeader, ident, []byte{0x07, 0x09, 0x02, 0x01, 'f', 0x00, 0x00, 0x01, 'f', 0x00, 0x00})},
		{"export count too large", concat(wasmHeader, ident, []byte{0x07, 0x02, 0x7f, 0x00})},
		{"bad custom name", concat(wasmHeader, []byte{0x00, 0x03, 0x02, 0xff, 0xfe})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Deserialize(tt.code)
			if !errors.IsKind(err, errors.KindDeserialization) {
				t.Fatalf("Deserialize = %+v, %v; want deserialization error", m, err)
			}
		})
	}
}

func TestContentID(t *testing.T) {
	a, err := ContentID([]byte("a"))
	if err != nil {
		t.Fatalf("ContentID: %v", err)
	}
	again, _ := ContentID([]byte("a"))
	b, _ := ContentID([]byte("b"))
	if !a.Equals(again) {
		t.Error("ContentID is not deterministic")
	}
	if a.Equals(b) {
		t.Error("different content must have different ids")
	}
	parsed, err := cid.Decode(a.String())
	if err != nil || !parsed.Equals(a) {
		t.Errorf("cid round trip: %v", err)
	}
}

func TestWazeroVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewWazeroVerifier(ctx)
	defer v.Close(ctx)

	m, err := Deserialize(mustAssemble(t, "0x1", "counter", nil, runWasm))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	vm, err := v.Verify(ctx, m)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(vm.Functions) != 1 || vm.Functions[0] != "run" {
		t.Errorf("Functions = %v", vm.Functions)
	}
	if vm.Compiled() == nil || vm.CompiledModule != m {
		t.Error("verified module does not wrap its inputs")
	}
	inst, err := v.Instantiate(ctx, vm)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if inst.ExportedFunction("run") == nil {
		t.Error("instance lacks the run export")
	}
	inst.Close(ctx)
	if _, err := v.Instantiate(ctx, &VerifiedModule{CompiledModule: m}); !errors.IsKind(err, errors.KindVerification) {
		t.Errorf("Instantiate without compiled code = %v, want verification error", err)
	}
	if err := vm.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWazeroVerifierRejects(t *testing.T) {
	ctx := context.Background()
	v := NewWazeroVerifier(ctx)
	defer v.Close(ctx)

	bad, err := Deserialize(mustAssemble(t, "0x1", "broken", nil, invalidWasm))
	if err != nil {
		t.Fatalf("Deserialize should accept structurally valid code: %v", err)
	}
	if _, err := v.Verify(ctx, bad); !errors.IsKind(err, errors.KindVerification) {
		t.Errorf("Verify = %v, want verification error", err)
	}

	good, err := Deserialize(mustAssemble(t, "0x1", "counter", nil, runWasm))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	tampered := *good
	tampered.Name = "other"
	if _, err := v.Verify(ctx, &tampered); !errors.IsKind(err, errors.KindVerification) {
		t.Errorf("Verify of mismatched identity = %v, want verification error", err)
	}
}
