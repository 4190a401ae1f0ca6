// Package vmcodec is the value codec and module-resolution boundary of a
// stack-based VM runtime.
//
// Values live in the VM as trees of primitives, vectors, structs and tagged
// variants. The codec converts them to and from a compact binary form, driven
// by a caller-supplied layout that describes the expected shape. Some values
// are delayed: the VM holds an opaque handle and the content is resolved from
// an external store when the value is serialized.
//
// # Architecture Overview
//
//	vmcodec/
//	├── layout/      Layout sum type, text syntax, static analysis, WIT bridge
//	├── value/       Value sum type, JSON form, delayed handles
//	├── codec/       Encode, Decode, DecodePrefix and Size
//	├── delayed/     In-memory delayed value store and derived string helpers
//	├── module/      Published module container, content IDs, wazero verifier
//	├── storage/     ModuleStorage with caching over memory and SQLite backends
//	├── config/      vmcodec.toml loading and logger construction
//	├── errors/      Structured error types
//	└── cmd/vmcodec  Command line tool and interactive encoder
//
// # Quick Start
//
// Encode and decode a value:
//
//	l := layout.MustParse("enum{[u64],[],[bool,u32]}")
//	data, err := codec.Encode(value.NewVariant(2, value.Bool(true), value.U32(13)), l)
//	v, err := codec.Decode(data, l)
//
// Serialize delayed values through a store:
//
//	store := delayed.NewStore()
//	handle, _ := store.PutAggregator(value.U64(7))
//	c := codec.New(codec.WithDelayedStore(store), codec.WithDelayedMapper(store))
//	data, err := c.Encode(handle, layout.MustParse("aggregator<u64>"))
//
// Resolve a verified module:
//
//	backend, _ := storage.OpenSQLite(ctx, "modules.db")
//	st, _ := storage.New(ctx, backend)
//	vm, err := st.FetchVerifiedModule(ctx, value.MustParseAddress("0x1"), "counter")
//
// # Error Handling
//
// All errors are *errors.Error values carrying a phase, a kind and, for codec
// errors, the path to the failing node:
//
//	if errors.IsKind(err, errors.KindInvalidDiscriminant) {
//	    // reject the input
//	}
package vmcodec
