package index

import (
	"fmt"
	"runtime"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplStripedLinked Implementation = "striped-linked"
	ImplStripedChain  Implementation = "striped-chain"
	ImplShardedNative Implementation = "sharded-native"

	// ImplDefault is used whenever the configured implementation is unknown
	ImplDefault = ImplStripedLinked
)

// Implementations lists every known implementation in a stable order
var Implementations = []Implementation{ImplStripedLinked, ImplStripedChain, ImplShardedNative}

// ParseImplementation maps a configuration value to an Implementation.
// The boolean is false if the value is unknown, in which case ImplDefault is returned.
func ParseImplementation(s string) (Implementation, bool) {
	switch Implementation(s) {
	case ImplStripedLinked, ImplStripedChain, ImplShardedNative:
		return Implementation(s), true
	default:
		return ImplDefault, false
	}
}

// Sizing bounds for Config
const (
	MinMagnitude   = 8
	MaxMagnitude   = 30
	MinParallelism = 0
	MaxParallelism = 15
)

// Config describes the shape of an index. The raw values are clamped when
// the derived sizes are computed, so any integer is accepted.
type Config struct {
	Implementation Implementation
	// Magnitude determines the bucket array size: 2 << clamp(Magnitude, 8, 30)
	Magnitude int
	// Parallelism determines the lock table size of the striped-linked variant: 2 << clamp(Parallelism, 0, 15)
	Parallelism int
	// Shards is the shard count of the sharded-native variant (<= 0 = runtime.NumCPU())
	Shards int
}

// DefaultConfig returns the default index configuration
func DefaultConfig() Config {
	return Config{
		Implementation: ImplDefault,
		Magnitude:      20,
		Parallelism:    8,
		Shards:         runtime.NumCPU(),
	}
}

// Capacity returns the bucket array size. The result is always a power of two.
func (c Config) Capacity() int {
	return 2 << clamp(c.Magnitude, MinMagnitude, MaxMagnitude)
}

// LockCount returns the lock table size. The result is always a power of two.
func (c Config) LockCount() int {
	return 2 << clamp(c.Parallelism, MinParallelism, MaxParallelism)
}

// ShardCount returns the number of shards for the sharded-native variant.
// No power-of-two requirement applies.
func (c Config) ShardCount() int {
	if c.Shards <= 0 {
		return runtime.NumCPU()
	}
	return c.Shards
}

func (c Config) String() string {
	return fmt.Sprintf("%s(capacity=%d, locks=%d, shards=%d)", c.Implementation, c.Capacity(), c.LockCount(), c.ShardCount())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --------------------------------------------------------------------------
// Index Interface
// --------------------------------------------------------------------------

// ILongKeyedIndex maps a 64-bit key to a value (usually an item handle).
// The index never owns the value, it only holds a reference to it.
//
// Implementations must be safe for concurrent use. No operation returns an error,
// an absent key is a normal result.
type ILongKeyedIndex[V any] interface {

	// Get returns the most recently inserted, not yet removed value for the key.
	Get(key uint64) (value V, ok bool)

	// Put inserts the value unconditionally. Existing entries for the same key are
	// NOT replaced: both entries are kept and Get returns the newer one.
	Put(key uint64, value V)

	// Remove removes and returns one entry for the key (the most recently inserted one).
	Remove(key uint64) (value V, ok bool)

	// Clear removes all entries.
	Clear()
}

// ISizedIndex is implemented by indexes that keep an exact entry count.
// Not every implementation does (see sharded-native), so callers must check.
type ISizedIndex[V any] interface {
	ILongKeyedIndex[V]

	// Size returns the number of live entries (duplicates are counted individually).
	Size() int

	// IsEmpty returns whether the index holds no entries.
	IsEmpty() bool
}

// SizeOf returns the size of the index if the implementation supports it.
func SizeOf[V any](idx ILongKeyedIndex[V]) (int, bool) {
	if sized, ok := idx.(ISizedIndex[V]); ok {
		return sized.Size(), true
	}
	return 0, false
}
