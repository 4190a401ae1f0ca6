package storage

import (
	"context"
	"slices"

	"github.com/golang/groupcache/singleflight"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/module"
	"github.com/wippyai/vmcodec/value"
)

// Default cache capacities.
const (
	DefaultDeserializedCacheSize = 1024
	DefaultVerifiedCacheSize     = 256
)

// ModuleStorage resolves modules by (address, name). Implementations must be
// safe for concurrent use, and every operation must be idempotent.
type ModuleStorage interface {
	CheckModuleExists(ctx context.Context, addr value.Address, name string) (bool, error)
	FetchModuleSizeInBytes(ctx context.Context, addr value.Address, name string) (uint64, error)
	FetchModuleMetadata(ctx context.Context, addr value.Address, name string) ([]module.Metadata, error)
	FetchDeserializedModule(ctx context.Context, addr value.Address, name string) (*module.CompiledModule, error)
	FetchVerifiedModule(ctx context.Context, addr value.Address, name string) (*module.VerifiedModule, error)
}

var _ ModuleStorage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*options)

type options struct {
	verifier         module.Verifier
	deserializedSize int
	verifiedSize     int
}

// WithVerifier sets the verifier. By default Storage owns a
// module.WazeroVerifier, closed by Storage.Close.
func WithVerifier(v module.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithCacheSizes sets the capacities of the deserialized and verified
// caches. Non-positive values keep the defaults.
func WithCacheSizes(deserialized, verified int) Option {
	return func(o *options) {
		if deserialized > 0 {
			o.deserializedSize = deserialized
		}
		if verified > 0 {
			o.verifiedSize = verified
		}
	}
}

// Storage is the caching ModuleStorage over a Backend.
type Storage struct {
	backend      Backend
	verifier     module.Verifier
	ownsVerifier bool
	deserialized *lru.Cache[moduleKey, *module.CompiledModule]
	verified     *lru.Cache[string, *module.VerifiedModule]
	flights      singleflight.Group
}

// New creates a Storage reading from backend.
func New(ctx context.Context, backend Backend, opts ...Option) (*Storage, error) {
	o := options{
		deserializedSize: DefaultDeserializedCacheSize,
		verifiedSize:     DefaultVerifiedCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	deserialized, err := lru.New[moduleKey, *module.CompiledModule](o.deserializedSize)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, err.Error())
	}
	// Evicted modules are not closed: callers may still hold them, and their
	// compiled code belongs to the verifier's runtime.
	verified, err := lru.New[string, *module.VerifiedModule](o.verifiedSize)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, err.Error())
	}

	s := &Storage{
		backend:      backend,
		verifier:     o.verifier,
		deserialized: deserialized,
		verified:     verified,
	}
	if s.verifier == nil {
		s.verifier = module.NewWazeroVerifier(ctx)
		s.ownsVerifier = true
	}
	return s, nil
}

func (s *Storage) CheckModuleExists(ctx context.Context, addr value.Address, name string) (bool, error) {
	if _, ok := s.deserialized.Get(moduleKey{addr: addr, name: name}); ok {
		return true, nil
	}
	ok, err := s.backend.Has(ctx, addr, name)
	if err != nil {
		return false, backendError("query", addr, name, err)
	}
	return ok, nil
}

func (s *Storage) FetchModuleSizeInBytes(ctx context.Context, addr value.Address, name string) (uint64, error) {
	if m, ok := s.deserialized.Get(moduleKey{addr: addr, name: name}); ok {
		return uint64(m.Size()), nil
	}
	code, err := s.fetchCode(ctx, addr, name)
	if err != nil {
		return 0, err
	}
	return uint64(len(code)), nil
}

func (s *Storage) FetchModuleMetadata(ctx context.Context, addr value.Address, name string) ([]module.Metadata, error) {
	m, err := s.FetchDeserializedModule(ctx, addr, name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(m.Metadata), nil
}

func (s *Storage) FetchDeserializedModule(ctx context.Context, addr value.Address, name string) (*module.CompiledModule, error) {
	key := moduleKey{addr: addr, name: name}
	if m, ok := s.deserialized.Get(key); ok {
		return m, nil
	}

	v, err := s.flights.Do("d/"+qualified(addr, name), func() (interface{}, error) {
		if m, ok := s.deserialized.Get(key); ok {
			return m, nil
		}
		code, err := s.fetchCode(ctx, addr, name)
		if err != nil {
			return nil, err
		}
		m, err := module.Deserialize(code)
		if err != nil {
			return nil, err
		}
		if m.Address != addr || m.Name != name {
			return nil, errors.Deserialization(
				"module stored as "+qualified(addr, name)+" identifies as "+m.QualifiedName(), nil)
		}
		s.deserialized.Add(key, m)
		Logger().Debug("module deserialized",
			zap.String("module", m.QualifiedName()),
			zap.Stringer("cid", m.ID),
			zap.Int("size", m.Size()))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*module.CompiledModule), nil
}

func (s *Storage) FetchVerifiedModule(ctx context.Context, addr value.Address, name string) (*module.VerifiedModule, error) {
	m, err := s.FetchDeserializedModule(ctx, addr, name)
	if err != nil {
		return nil, err
	}
	key := m.ID.KeyString()
	if vm, ok := s.verified.Get(key); ok {
		return vm, nil
	}

	v, err := s.flights.Do("v/"+key, func() (interface{}, error) {
		if vm, ok := s.verified.Get(key); ok {
			return vm, nil
		}
		vm, err := s.verifier.Verify(ctx, m)
		if err != nil {
			Logger().Debug("module rejected",
				zap.String("module", m.QualifiedName()),
				zap.Error(err))
			return nil, err
		}
		s.verified.Add(key, vm)
		Logger().Debug("module verified",
			zap.String("module", m.QualifiedName()),
			zap.Stringer("cid", m.ID),
			zap.Int("functions", len(vm.Functions)))
		return vm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*module.VerifiedModule), nil
}

// Invalidate drops the cached deserialized module for (addr, name). The next
// fetch reads the backend again. Verified modules are keyed by content and
// stay cached until evicted.
func (s *Storage) Invalidate(addr value.Address, name string) {
	s.deserialized.Remove(moduleKey{addr: addr, name: name})
}

// Close purges the caches and closes the verifier if Storage created it,
// which releases the compiled code of every module it verified.
func (s *Storage) Close(ctx context.Context) error {
	s.deserialized.Purge()
	s.verified.Purge()
	if s.ownsVerifier {
		if wv, ok := s.verifier.(*module.WazeroVerifier); ok {
			return wv.Close(ctx)
		}
	}
	return nil
}

func (s *Storage) fetchCode(ctx context.Context, addr value.Address, name string) ([]byte, error) {
	code, ok, err := s.backend.Get(ctx, addr, name)
	if err != nil {
		return nil, backendError("read", addr, name, err)
	}
	if !ok {
		return nil, errors.NotFound(errors.PhaseStorage, "module", qualified(addr, name))
	}
	return code, nil
}

func backendError(op string, addr value.Address, name string, err error) error {
	if errors.IsKind(err, errors.KindStorageBackend) {
		return err
	}
	return errors.StorageBackend(op+" "+qualified(addr, name), err)
}

func qualified(addr value.Address, name string) string {
	return addr.ShortString() + "::" + name
}
