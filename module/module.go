package module

import (
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/value"
)

// MaxNameLength bounds module names in bytes.
const MaxNameLength = 255

// Metadata is an opaque key/value entry attached to a module by its publisher.
type Metadata struct {
	Key   []byte `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// ExportKind identifies what an export refers to.
type ExportKind byte

const (
	ExportFunc   ExportKind = 0x00
	ExportTable  ExportKind = 0x01
	ExportMemory ExportKind = 0x02
	ExportGlobal ExportKind = 0x03
	ExportTag    ExportKind = 0x04
)

func (k ExportKind) String() string {
	switch k {
	case ExportFunc:
		return "func"
	case ExportTable:
		return "table"
	case ExportMemory:
		return "memory"
	case ExportGlobal:
		return "global"
	case ExportTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Export is an entry of the module's export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// CompiledModule is a deserialized module. It has not necessarily been verified.
// Values of this type are shared between callers and must not be modified.
type CompiledModule struct {
	ID       cid.Cid
	Name     string
	Code     []byte
	Metadata []Metadata
	Exports  []Export
	Address  value.Address
}

// Size returns the length of the serialized module.
func (m *CompiledModule) Size() int {
	return len(m.Code)
}

// FunctionExports returns the names of exported functions, sorted.
func (m *CompiledModule) FunctionExports() []string {
	var names []string
	for _, e := range m.Exports {
		if e.Kind == ExportFunc {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

// QualifiedName returns the module's address and name as "0x1::name".
func (m *CompiledModule) QualifiedName() string {
	return m.Address.ShortString() + "::" + m.Name
}

// ValidateName checks that name is an identifier: a letter or underscore
// followed by letters, digits or underscores, at most MaxNameLength bytes.
func ValidateName(name string) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseLoad, "empty module name")
	}
	if len(name) > MaxNameLength {
		return errors.InvalidInput(errors.PhaseLoad, "module name longer than 255 bytes")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return errors.InvalidInput(errors.PhaseLoad, "invalid module name "+quoteName(name))
		}
	}
	return nil
}

// ContentID returns the CIDv1 (raw codec, sha2-256) of code.
func ContentID(code []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(code, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

func quoteName(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return "\"" + s + "\""
}
