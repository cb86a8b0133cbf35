// Package testing provides standardised tests and benchmarks for store
// implementations that satisfy the store.IStore interface.
//
// The package contains:
//   - testing: A conformance test suite validating the IStore interface contract,
//     including typed-value mutation semantics and error codes
//   - benchmark: Performance tests for measuring throughput of common store operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(tb testing.TB) store.IStore {
//		return NewMyStore(tb.TempDir())
//	}
//
//	// Running the standard test suite
//	storetesting.RunStoreTests(t, "MyStore", factory)
//
//	// Running performance benchmarks
//	storetesting.RunStoreBenchmarks(b, "MyStore", factory)
package testing
