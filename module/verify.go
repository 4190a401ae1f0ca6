package module

import (
	"bytes"
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/vmcodec/errors"
)

// Verifier checks a deserialized module and produces its verified form.
type Verifier interface {
	Verify(ctx context.Context, m *CompiledModule) (*VerifiedModule, error)
}

// VerifiedModule is a module that passed verification. It is immutable and
// shared by every caller that resolves the same code.
type VerifiedModule struct {
	*CompiledModule
	compiled wazero.CompiledModule
	// Functions lists exported function names, sorted.
	Functions []string
}

// Compiled returns the wazero compilation of the module, or nil when the
// module was verified without one.
func (v *VerifiedModule) Compiled() wazero.CompiledModule {
	return v.compiled
}

// Close releases the compiled code held by the module. Only the last holder
// may call it; shared modules are released with their verifier instead.
func (v *VerifiedModule) Close(ctx context.Context) error {
	if v.compiled == nil {
		return nil
	}
	return v.compiled.Close(ctx)
}

// WazeroVerifier verifies modules by compiling them with wazero.
type WazeroVerifier struct {
	runtime wazero.Runtime
}

// NewWazeroVerifier creates a verifier backed by its own wazero runtime.
func NewWazeroVerifier(ctx context.Context) *WazeroVerifier {
	cfg := wazero.NewRuntimeConfig().WithCustomSections(true)
	return &WazeroVerifier{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Verify compiles m and checks that the compiled form carries the same
// identity section the module was deserialized from.
func (v *WazeroVerifier) Verify(ctx context.Context, m *CompiledModule) (*VerifiedModule, error) {
	compiled, err := v.runtime.CompileModule(ctx, m.Code)
	if err != nil {
		return nil, errors.Verification("compile "+m.QualifiedName(), err)
	}

	var identity []byte
	for _, s := range compiled.CustomSections() {
		if s.Name() == IdentitySection {
			identity = s.Data()
			break
		}
	}
	if want, err := identityPayload(m); err != nil || !bytes.Equal(identity, want) {
		_ = compiled.Close(ctx)
		return nil, errors.Verification("identity section of "+m.QualifiedName()+" does not match", err)
	}

	functions := make([]string, 0, len(compiled.ExportedFunctions()))
	for name := range compiled.ExportedFunctions() {
		functions = append(functions, name)
	}
	sort.Strings(functions)

	return &VerifiedModule{
		CompiledModule: m,
		compiled:       compiled,
		Functions:      functions,
	}, nil
}

// Instantiate runs vm's start function in the verifier's runtime and returns
// the instance. vm must have been verified by v.
func (v *WazeroVerifier) Instantiate(ctx context.Context, vm *VerifiedModule) (api.Module, error) {
	if vm.compiled == nil {
		return nil, errors.Verification(vm.QualifiedName()+" has no compiled code", nil)
	}
	inst, err := v.runtime.InstantiateModule(ctx, vm.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Verification("instantiate "+vm.QualifiedName(), err)
	}
	return inst, nil
}

// Close releases the verifier's runtime and every module it compiled.
func (v *WazeroVerifier) Close(ctx context.Context) error {
	return v.runtime.Close(ctx)
}
