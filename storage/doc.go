// Package storage resolves published modules by address and name.
//
// A Backend holds raw module bytes. Storage layers two caches over a backend:
// deserialized modules keyed by (address, name), and verified modules keyed
// by content ID so that reloading unchanged bytes after Invalidate does not
// verify them again. Concurrent first access to a key runs deserialization and
// verification once; every caller receives the same immutable object.
//
// Two backends are provided: MemoryBackend for tests and embedding, and
// SQLiteBackend for persistent stores.
//
//	backend, err := storage.OpenSQLite(ctx, "modules.db")
//	st, err := storage.New(ctx, backend)
//	defer st.Close(ctx)
//	vm, err := st.FetchVerifiedModule(ctx, addr, "counter")
package storage
