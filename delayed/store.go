package delayed

import (
	"strconv"
	"sync"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

// Serialized widths of aggregator and snapshot content.
const (
	WidthU64  = 8
	WidthU128 = 16
)

type entry struct {
	content value.Value
	kind    layout.NativeKind
	width   uint32
}

// Store is an in-memory external store for delayed values. It implements
// codec.DelayedStore and codec.DelayedMapper and is safe for concurrent use.
type Store struct {
	entries map[uint64]entry
	// index maps canonical (kind, width, content) keys to every id currently
	// holding that content.
	index  map[string]map[uint64]struct{}
	nextID uint64
	mu     sync.RWMutex
}

// NewStore creates an empty store. Ids handed out by the Put methods start at 1.
func NewStore() *Store {
	return &Store{
		entries: make(map[uint64]entry),
		index:   make(map[string]map[uint64]struct{}),
		nextID:  1,
	}
}

// PutAggregator stores a u64 or u128 aggregator value and returns its handle.
func (s *Store) PutAggregator(v value.Value) (value.Delayed, error) {
	return s.putNumeric(layout.Aggregator, v)
}

// PutSnapshot stores a u64 or u128 snapshot value and returns its handle.
func (s *Store) PutSnapshot(v value.Value) (value.Delayed, error) {
	return s.putNumeric(layout.Snapshot, v)
}

// PutDerivedString stores a string padded to width and returns its handle.
func (s *Store) PutDerivedString(b []byte, width uint32) (value.Delayed, error) {
	content, err := DerivedStringContent(b, width)
	if err != nil {
		return value.Delayed{}, err
	}
	return s.put(layout.DerivedString, width, content), nil
}

func (s *Store) putNumeric(kind layout.NativeKind, v value.Value) (value.Delayed, error) {
	width, err := numericWidth(kind, v)
	if err != nil {
		return value.Delayed{}, err
	}
	return s.put(kind, width, v), nil
}

func (s *Store) put(kind layout.NativeKind, width uint32, content value.Value) value.Delayed {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocate()
	s.insertLocked(id, entry{kind: kind, width: width, content: content})
	return value.NewDelayed(id, width)
}

// Insert stores content under a caller-chosen id, replacing any previous entry.
func (s *Store) Insert(id uint64, kind layout.NativeKind, width uint32, content value.Value) error {
	if err := validate(kind, width, content); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(id, entry{kind: kind, width: width, content: content})
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return nil
}

// Set replaces the content of an existing entry. Kind and width cannot change.
func (s *Store) Set(id uint64, content value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return unknownID(id)
	}
	if err := validate(e.kind, e.width, content); err != nil {
		return err
	}
	e.content = content
	s.insertLocked(id, e)
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Describe returns the kind and width of id.
func (s *Store) Describe(id uint64) (layout.NativeKind, uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return 0, 0, unknownID(id)
	}
	return e.kind, e.width, nil
}

// Materialize returns the kind and current content of id.
func (s *Store) Materialize(id uint64) (layout.NativeKind, value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return 0, nil, unknownID(id)
	}
	return e.kind, e.content, nil
}

// Identify returns the id whose current content equals content, creating a
// new entry when none does. Encoded bytes carry no identity, so content held
// by more than one entry cannot be mapped back and is rejected.
func (s *Store) Identify(kind layout.NativeKind, content value.Value, width uint32) (uint64, error) {
	if err := validate(kind, width, content); err != nil {
		return 0, err
	}
	key := indexKey(kind, width, content)

	s.mu.RLock()
	id, found, err := s.lookupLocked(key, kind, width, content)
	s.mu.RUnlock()
	if found || err != nil {
		return id, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, found, err := s.lookupLocked(key, kind, width, content); found || err != nil {
		return id, err
	}
	id = s.allocate()
	s.insertLocked(id, entry{kind: kind, width: width, content: content})
	return id, nil
}

func (s *Store) lookupLocked(key string, kind layout.NativeKind, width uint32, content value.Value) (uint64, bool, error) {
	var (
		found uint64
		n     int
	)
	for id := range s.index[key] {
		if !s.matches(id, kind, width, content) {
			continue
		}
		if n++; n > 1 {
			return 0, false, errors.New(errors.PhaseResolve, errors.KindDelayedValue).
				ValueType(value.TypeName(content)).
				Detail("%s content %s is held by more than one id", kind, content).
				Build()
		}
		found = id
	}
	return found, n == 1, nil
}

func (s *Store) matches(id uint64, kind layout.NativeKind, width uint32, content value.Value) bool {
	e, ok := s.entries[id]
	return ok && e.kind == kind && e.width == width && value.Equal(e.content, content)
}

func (s *Store) allocate() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// insertLocked stores e under id and moves id to the index key of its new content.
func (s *Store) insertLocked(id uint64, e entry) {
	if old, ok := s.entries[id]; ok {
		oldKey := indexKey(old.kind, old.width, old.content)
		delete(s.index[oldKey], id)
		if len(s.index[oldKey]) == 0 {
			delete(s.index, oldKey)
		}
	}
	s.entries[id] = e
	key := indexKey(e.kind, e.width, e.content)
	ids, ok := s.index[key]
	if !ok {
		ids = make(map[uint64]struct{})
		s.index[key] = ids
	}
	ids[id] = struct{}{}
}

func indexKey(kind layout.NativeKind, width uint32, content value.Value) string {
	return kind.String() + "/" + strconv.FormatUint(uint64(width), 10) + "/" + content.String()
}

func validate(kind layout.NativeKind, width uint32, content value.Value) error {
	switch kind {
	case layout.Aggregator, layout.Snapshot:
		w, err := numericWidth(kind, content)
		if err != nil {
			return err
		}
		if w != width {
			return errors.New(errors.PhaseResolve, errors.KindDelayedValue).
				Detail("%s %s has width %d, not %d", kind, value.TypeName(content), w, width).
				Build()
		}
		return nil
	case layout.DerivedString:
		_, err := DerivedStringBytes(content, width)
		return err
	default:
		return errors.Unsupported(errors.PhaseResolve, "native kind "+kind.String())
	}
}

func numericWidth(kind layout.NativeKind, v value.Value) (uint32, error) {
	switch v.(type) {
	case value.U64:
		return WidthU64, nil
	case value.U128:
		return WidthU128, nil
	default:
		return 0, errors.New(errors.PhaseResolve, errors.KindDelayedValue).
			ValueType(value.TypeName(v)).
			Detail("%s content must be u64 or u128", kind).
			Build()
	}
}

func unknownID(id uint64) error {
	return errors.DelayedValue(errors.PhaseResolve, nil, id, "unknown id")
}
