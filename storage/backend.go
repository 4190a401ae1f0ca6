package storage

import (
	"context"
	"sync"

	"github.com/wippyai/vmcodec/value"
)

// Backend is a source of serialized modules.
type Backend interface {
	// Get returns the module bytes, or ok=false when no module is stored
	// under the key.
	Get(ctx context.Context, addr value.Address, name string) (code []byte, ok bool, err error)
	Has(ctx context.Context, addr value.Address, name string) (bool, error)
}

// WritableBackend is a Backend that accepts published modules.
type WritableBackend interface {
	Backend
	Put(ctx context.Context, addr value.Address, name string, code []byte) error
	Delete(ctx context.Context, addr value.Address, name string) error
}

var (
	_ WritableBackend = (*MemoryBackend)(nil)
	_ WritableBackend = (*SQLiteBackend)(nil)
)

type moduleKey struct {
	name string
	addr value.Address
}

// MemoryBackend keeps modules in a map. It is safe for concurrent use.
type MemoryBackend struct {
	modules map[moduleKey][]byte
	mu      sync.RWMutex
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{modules: make(map[moduleKey][]byte)}
}

func (b *MemoryBackend) Get(ctx context.Context, addr value.Address, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	code, ok := b.modules[moduleKey{addr: addr, name: name}]
	return code, ok, nil
}

func (b *MemoryBackend) Has(ctx context.Context, addr value.Address, name string) (bool, error) {
	_, ok, err := b.Get(ctx, addr, name)
	return ok, err
}

// Put stores code under (addr, name), replacing any previous module.
func (b *MemoryBackend) Put(ctx context.Context, addr value.Address, name string, code []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.modules[moduleKey{addr: addr, name: name}] = append([]byte(nil), code...)
	b.mu.Unlock()
	return nil
}

// Delete removes the module stored under (addr, name).
func (b *MemoryBackend) Delete(ctx context.Context, addr value.Address, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.modules, moduleKey{addr: addr, name: name})
	b.mu.Unlock()
	return nil
}
