package module

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/vmcodec/codec"
	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/internal/binary"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

// Custom section names carrying module identity and metadata.
const (
	IdentitySection = "vm.module"
	MetadataSection = "vm.metadata"
)

// WebAssembly container constants.
const (
	sectionCustom   byte = 0
	sectionExport   byte = 7
	sectionDataCnt  byte = 12
	sectionTag      byte = 13
	maxSectionCount      = 1 << 16
	maxExportCount       = 1 << 16
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// identityLayout is the codec layout of the vm.module section payload:
// the publishing address followed by the module name bytes.
var identityLayout = layout.Struct{Fields: []layout.Layout{
	layout.Address{},
	layout.Vector{Elem: layout.U8{}},
}}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("module: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Assemble produces a publishable module: wasm with identity and metadata
// custom sections inserted directly after the header.
func Assemble(addr value.Address, name string, metadata []Metadata, wasm []byte) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(wasm, header) {
		return nil, errors.InvalidInput(errors.PhaseLoad, "input is not a WebAssembly 1.0 binary")
	}
	sections, err := readSections(wasm[len(header):])
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if s.id == sectionCustom && (s.name == IdentitySection || s.name == MetadataSection) {
			return nil, errors.InvalidInput(errors.PhaseLoad, "input already contains a "+s.name+" section")
		}
	}

	identity, err := encodeIdentity(addr, name)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = []Metadata{}
	}
	meta, err := cborEncMode.Marshal(metadata)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Cause(err).
			Detail("encode metadata").
			Build()
	}

	w := binary.NewWriter()
	w.WriteBytes(header)
	writeCustomSection(w, IdentitySection, identity)
	writeCustomSection(w, MetadataSection, meta)
	w.WriteBytes(wasm[len(header):])
	return w.Bytes(), nil
}

func writeCustomSection(w *binary.Writer, name string, payload []byte) {
	body := binary.NewWriter()
	body.WriteName(name)
	body.WriteBytes(payload)
	w.Byte(sectionCustom)
	w.WriteULEB32(uint32(body.Len()))
	w.WriteBytes(body.Bytes())
}

// Deserialize parses a published module. It checks container framing, the
// identity and metadata sections and the export section; it does not verify
// code.
func Deserialize(code []byte) (*CompiledModule, error) {
	if len(code) < len(header) || !bytes.Equal(code[:4], header[:4]) {
		return nil, errors.Deserialization("invalid magic number", nil)
	}
	if !bytes.Equal(code[4:8], header[4:]) {
		return nil, errors.Deserialization("unsupported version", nil)
	}
	sections, err := readSections(code[len(header):])
	if err != nil {
		return nil, err
	}

	m := &CompiledModule{Code: code}
	var haveIdentity, haveMetadata bool
	for _, s := range sections {
		switch {
		case s.id == sectionCustom && s.name == IdentitySection:
			if haveIdentity {
				return nil, errors.Deserialization("duplicate "+IdentitySection+" section", nil)
			}
			haveIdentity = true
			if err := decodeIdentity(s.payload, m); err != nil {
				return nil, err
			}
		case s.id == sectionCustom && s.name == MetadataSection:
			if haveMetadata {
				return nil, errors.Deserialization("duplicate "+MetadataSection+" section", nil)
			}
			haveMetadata = true
			if err := cbor.Unmarshal(s.payload, &m.Metadata); err != nil {
				return nil, errors.Deserialization("malformed "+MetadataSection+" section", err)
			}
		case s.id == sectionExport:
			exports, err := parseExports(s.payload)
			if err != nil {
				return nil, err
			}
			m.Exports = exports
		}
	}
	if !haveIdentity {
		return nil, errors.Deserialization("missing "+IdentitySection+" section", nil)
	}

	id, err := ContentID(code)
	if err != nil {
		return nil, errors.Deserialization("content id", err)
	}
	m.ID = id
	return m, nil
}

func encodeIdentity(addr value.Address, name string) ([]byte, error) {
	return codec.Encode(value.NewStruct(addr, value.Bytes([]byte(name))), identityLayout)
}

func identityPayload(m *CompiledModule) ([]byte, error) {
	return encodeIdentity(m.Address, m.Name)
}

func decodeIdentity(payload []byte, m *CompiledModule) error {
	v, err := codec.Decode(payload, identityLayout)
	if err != nil {
		return errors.Deserialization("malformed "+IdentitySection+" section", err)
	}
	fields := v.(value.Struct).Fields
	name, _ := value.AsBytes(fields[1])
	if err := ValidateName(string(name)); err != nil {
		return errors.Deserialization("invalid module name", err)
	}
	m.Address = fields[0].(value.Address)
	m.Name = string(name)
	return nil
}

type section struct {
	name    string
	payload []byte
	id      byte
}

// readSections splits the body after the header into sections, enforcing the
// canonical order of non-custom sections.
func readSections(body []byte) ([]section, error) {
	r := binary.NewReader(body)
	var out []section
	lastOrder := 0
	for r.Remaining() > 0 {
		if len(out) >= maxSectionCount {
			return nil, errors.Deserialization("too many sections", nil)
		}
		offset := r.Position()
		id, _ := r.ReadByte()
		size, err := r.ReadLEB32()
		if err != nil {
			return nil, errors.Deserialization(fmt.Sprintf("section size at offset %d", offset), err)
		}
		data, err := r.ReadN(int(size))
		if err != nil {
			return nil, errors.Deserialization(fmt.Sprintf("section %d at offset %d is truncated", id, offset), err)
		}

		s := section{id: id, payload: data}
		if id == sectionCustom {
			sr := binary.NewReader(data)
			name, err := sr.ReadName()
			if err != nil {
				return nil, errors.Deserialization(fmt.Sprintf("custom section name at offset %d", offset), err)
			}
			s.name = name
			s.payload = data[sr.Position():]
		} else {
			order := sectionOrder(id)
			if order == 0 {
				return nil, errors.Deserialization(fmt.Sprintf("unknown section id 0x%02x", id), nil)
			}
			if order <= lastOrder {
				return nil, errors.Deserialization(fmt.Sprintf("section %d appears out of order", id), nil)
			}
			lastOrder = order
		}
		out = append(out, s)
	}
	return out, nil
}

// sectionOrder returns the canonical position of a non-custom section id, or
// 0 for unknown ids. DataCount precedes Code and Tag follows Memory.
func sectionOrder(id byte) int {
	switch {
	case id >= 1 && id <= 5:
		return int(id)
	case id == sectionTag:
		return 6
	case id >= 6 && id <= 9:
		return int(id) + 1
	case id == sectionDataCnt:
		return 11
	case id == 10 || id == 11:
		return int(id) + 2
	default:
		return 0
	}
}

func parseExports(payload []byte) ([]Export, error) {
	r := binary.NewReader(payload)
	count, err := r.ReadLEB32()
	if err != nil {
		return nil, errors.Deserialization("export count", err)
	}
	if count > maxExportCount || int(count) > r.Remaining() {
		return nil, errors.Deserialization(fmt.Sprintf("export count %d exceeds section size", count), nil)
	}
	exports := make([]Export, 0, count)
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return nil, errors.Deserialization(fmt.Sprintf("export %d name", i), err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, errors.Deserialization(fmt.Sprintf("export %d kind", i), err)
		}
		if ExportKind(kind) > ExportTag {
			return nil, errors.Deserialization(fmt.Sprintf("invalid export kind 0x%02x", kind), nil)
		}
		idx, err := r.ReadLEB32()
		if err != nil {
			return nil, errors.Deserialization(fmt.Sprintf("export %d index", i), err)
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Deserialization("duplicate export "+quoteName(name), nil)
		}
		seen[name] = struct{}{}
		exports = append(exports, Export{Name: name, Kind: ExportKind(kind), Index: idx})
	}
	if r.Remaining() != 0 {
		return nil, errors.Deserialization("trailing bytes in export section", nil)
	}
	return exports, nil
}
