// Package module defines the bytecode modules resolved by the storage layer.
//
// A published module is a WebAssembly binary carrying two custom sections
// ahead of its code:
//
//	vm.module     identity: struct{address, vector<u8>} in the value wire format
//	vm.metadata   publisher metadata: CBOR array of {1: key, 2: value}
//
// Assemble adds these sections to a plain wasm binary. Deserialize parses a
// published module into a CompiledModule without verifying its code; a
// Verifier turns it into a VerifiedModule. WazeroVerifier compiles the code
// with wazero and rejects modules whose compiled identity section differs
// from the deserialized one.
//
// Every CompiledModule carries a content identifier (CIDv1, raw codec,
// sha2-256) so that verified modules can be cached by content.
package module
