// Package index defines the contract for concurrent indexes that map 64-bit
// item keys to in-memory handles, plus the configuration used to size them.
//
// Key Components:
//
//   - ILongKeyedIndex: Get, Put, Remove and Clear. No operation returns an error,
//     an absent key is a normal result. Put never deduplicates: putting a key twice
//     without removing it in between keeps both entries, Get returns the newer one
//     and each Remove takes away one entry, newest first.
//
//   - ISizedIndex: adds an exact entry count. Only implementations that maintain a
//     counter provide it, use SizeOf to query any index.
//
//   - Config: Magnitude and Parallelism are clamped before the bucket array size
//     (2 << clamp(Magnitude, 8, 30)) and the lock table size (2 << clamp(Parallelism, 0, 15))
//     are derived, so both are always powers of two. Shards is a plain count.
//
// Implementations:
//
//	The engines package holds the three implementations and selects one by name:
//
//	- striped-linked (default): lazily allocated buckets, lock table sized independently
//	- striped-chain: eagerly allocated buckets with one lock each
//	- sharded-native: a fixed number of xsync maps selected by key % shards
package index
