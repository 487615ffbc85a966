package sharded

import (
	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// entry is one value stored for a key. Entries of the same key form a chain,
// the most recently put one at the head. An entry is never mutated after it
// was published to a shard.
type entry[V any] struct {
	value V
	next  *entry[V]
}

// shardedImpl spreads the keys over a fixed number of independently
// synchronized maps. The shard of a key is key % numShards. Each map value is
// the head of the chain of entries put for that key.
//
// NOTE: this implementation intentionally keeps no entry count and does not
// implement index.ISizedIndex. Maintaining one would add a shared counter to
// every write that the shards otherwise never contend on.
type shardedImpl[V any] struct {
	numShards uint64
	shards    []*xsync.MapOf[uint64, *entry[V]]
}

// NewShardedIndex creates a new sharded-native index.
// The number of shards is conf.ShardCount() and each shard is presized to an
// equal part of conf.Capacity().
//
// Thread-safety: This function is not thread-safe, the returned index is.
func NewShardedIndex[V any](conf index.Config) index.ILongKeyedIndex[V] {
	numShards := conf.ShardCount()
	presize := conf.Capacity() / numShards
	hasher := createIdentityHasher()

	shards := make([]*xsync.MapOf[uint64, *entry[V]], numShards)
	for i := range shards {
		shards[i] = xsync.NewMapOfWithHasher[uint64, *entry[V]](hasher, xsync.WithPresize(presize))
	}

	return &shardedImpl[V]{
		numShards: uint64(numShards),
		shards:    shards,
	}
}

// createIdentityHasher creates a hash function that combines a key with a seed.
// Item keys are assigned monotonically and need no further mixing.
func createIdentityHasher() func(uint64, uint64) uint64 {
	return func(key uint64, mapSeed uint64) uint64 {
		return key ^ mapSeed
	}
}

// shardFor returns the shard for a given key. Plain modulo is used, the shard
// count does not have to be a power of two.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *shardedImpl[V]) shardFor(key uint64) *xsync.MapOf[uint64, *entry[V]] {
	return s.shards[key%s.numShards]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see index.ILongKeyedIndex)
// --------------------------------------------------------------------------

func (s *shardedImpl[V]) Get(key uint64) (V, bool) {
	head, ok := s.shardFor(key).Load(key)
	if !ok || head == nil {
		var zero V
		return zero, false
	}
	return head.value, true
}

// Put pushes a new entry at the head of the key's chain. Existing entries for
// the key are kept and become visible again once the newer ones are removed.
func (s *shardedImpl[V]) Put(key uint64, value V) {
	s.shardFor(key).Compute(key, func(head *entry[V], _ bool) (*entry[V], bool) {
		return &entry[V]{value: value, next: head}, false
	})
}

// Remove pops the head of the key's chain. The map key is deleted together
// with the last entry.
func (s *shardedImpl[V]) Remove(key uint64) (V, bool) {
	var (
		removed V
		found   bool
	)
	s.shardFor(key).Compute(key, func(head *entry[V], loaded bool) (*entry[V], bool) {
		if !loaded || head == nil {
			return nil, true
		}
		removed, found = head.value, true
		return head.next, head.next == nil
	})
	return removed, found
}

func (s *shardedImpl[V]) Clear() {
	for _, shard := range s.shards {
		shard.Clear()
	}
}
