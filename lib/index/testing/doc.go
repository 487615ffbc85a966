// Package testing provides standardised tests and benchmarks for
// index implementations that satisfy the index.ILongKeyedIndex interface.
//
// The package contains:
//   - testing: A conformance suite covering lookups, removal order of duplicate keys,
//     bucket collisions, clearing and concurrent use
//   - benchmark: Performance tests for measuring throughput of common index operations
//
// Tests that depend on an exact entry count are skipped (or the count is not
// checked) for implementations that do not satisfy index.ISizedIndex.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() index.ILongKeyedIndex[string] {
//		return NewMyIndex[string](index.DefaultConfig())
//	}
//
//	// Running the standard test suite
//	testing.RunIndexTests(t, "MyIndex", factory)
//
//	// Running performance benchmarks
//	testing.RunIndexBenchmarks(b, "MyIndex", factory)
package testing
