package chain

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/itemstore/lib/index"
)

// entry is a single membership entry, chained with the other entries of its bucket
type entry[V any] struct {
	key   uint64
	value V
	next  *entry[V]
}

// bucket pairs a chain head with the lock that protects it
type bucket[V any] struct {
	mu   sync.Mutex
	head *entry[V]
}

// chainImpl is a fixed size array of singly linked buckets with one lock per bucket.
// Everything is allocated when the index is created.
type chainImpl[V any] struct {
	mask    uint64
	buckets []bucket[V]
	size    atomic.Int64
}

// NewChainIndex creates a new striped-chain index sized by conf.
// Only conf.Capacity() is used, the lock count always equals the bucket count.
func NewChainIndex[V any](conf index.Config) index.ISizedIndex[V] {
	capacity := conf.Capacity()
	return &chainImpl[V]{
		mask:    uint64(capacity - 1),
		buckets: make([]bucket[V], capacity),
	}
}

func (c *chainImpl[V]) bucketFor(key uint64) *bucket[V] {
	return &c.buckets[key&c.mask]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see index.ILongKeyedIndex)
// --------------------------------------------------------------------------

func (c *chainImpl[V]) Get(key uint64) (V, bool) {
	b := c.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (c *chainImpl[V]) Put(key uint64, value V) {
	b := c.bucketFor(key)
	b.mu.Lock()
	b.head = &entry[V]{key: key, value: value, next: b.head}
	c.size.Add(1)
	b.mu.Unlock()
}

func (c *chainImpl[V]) Remove(key uint64) (V, bool) {
	b := c.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	for link := &b.head; *link != nil; link = &(*link).next {
		if e := *link; e.key == key {
			*link = e.next
			c.size.Add(-1)
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (c *chainImpl[V]) Clear() {
	for i := range c.buckets {
		b := &c.buckets[i]
		b.mu.Lock()
		var removed int64
		for e := b.head; e != nil; e = e.next {
			removed++
		}
		b.head = nil
		if removed > 0 {
			c.size.Add(-removed)
		}
		b.mu.Unlock()
	}
}

func (c *chainImpl[V]) Size() int {
	return int(c.size.Load())
}

func (c *chainImpl[V]) IsEmpty() bool {
	return c.size.Load() == 0
}
