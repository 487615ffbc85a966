package striped

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/itemstore/lib/index"
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// entry is a single membership entry, chained with the other entries of its bucket
type entry[V any] struct {
	key   uint64
	value V
	next  *entry[V]
}

// stripedImpl is a fixed size array of singly linked buckets protected by an
// independently sized table of striped locks.
//
// Neither the bucket array nor the locks exist until they are needed: the
// array is allocated on the first Put and every lock on the first touch of its slot.
type stripedImpl[V any] struct {
	bucketMask uint64
	lockMask   uint64
	capacity   int

	// creation guards the lazy allocation of buckets and locks
	creation sync.Mutex
	buckets  atomic.Pointer[[]*entry[V]]
	locks    []atomic.Pointer[sync.Mutex]

	size atomic.Int64
}

// NewStripedIndex creates a new striped-linked index sized by conf.
//
// Thread-safety: This function is not thread-safe, the returned index is.
func NewStripedIndex[V any](conf index.Config) index.ISizedIndex[V] {
	capacity := conf.Capacity()
	lockCount := conf.LockCount()

	// a bucket must never be covered by more than one lock
	if lockCount > capacity {
		lockCount = capacity
	}

	return &stripedImpl[V]{
		bucketMask: uint64(capacity - 1),
		lockMask:   uint64(lockCount - 1),
		capacity:   capacity,
		locks:      make([]atomic.Pointer[sync.Mutex], lockCount),
	}
}

// --------------------------------------------------------------------------
// Lazy allocation helpers
// --------------------------------------------------------------------------

// lockFor returns the stripe lock for the key and creates it if necessary.
//
// Thread-safety: double-checked under the creation lock, at most one lock is ever created per slot.
func (s *stripedImpl[V]) lockFor(key uint64) *sync.Mutex {
	slot := &s.locks[key&s.lockMask]
	if l := slot.Load(); l != nil {
		return l
	}

	s.creation.Lock()
	defer s.creation.Unlock()

	if l := slot.Load(); l != nil {
		return l
	}
	l := &sync.Mutex{}
	slot.Store(l)
	return l
}

// bucketsForWrite returns the bucket array and allocates it on first use.
//
// Thread-safety: double-checked under the creation lock, at most one array is ever allocated.
func (s *stripedImpl[V]) bucketsForWrite() []*entry[V] {
	if b := s.buckets.Load(); b != nil {
		return *b
	}

	s.creation.Lock()
	defer s.creation.Unlock()

	if b := s.buckets.Load(); b != nil {
		return *b
	}
	b := make([]*entry[V], s.capacity)
	s.buckets.Store(&b)
	return b
}

// bucketsForRead returns the bucket array or nil if nothing was ever written
func (s *stripedImpl[V]) bucketsForRead() []*entry[V] {
	if b := s.buckets.Load(); b != nil {
		return *b
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see index.ILongKeyedIndex)
// --------------------------------------------------------------------------

func (s *stripedImpl[V]) Get(key uint64) (V, bool) {
	var zero V
	buckets := s.bucketsForRead()
	if buckets == nil {
		return zero, false
	}

	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	for e := buckets[key&s.bucketMask]; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	return zero, false
}

func (s *stripedImpl[V]) Put(key uint64, value V) {
	buckets := s.bucketsForWrite()

	l := s.lockFor(key)
	l.Lock()
	b := key & s.bucketMask
	buckets[b] = &entry[V]{key: key, value: value, next: buckets[b]}
	s.size.Add(1)
	l.Unlock()
}

func (s *stripedImpl[V]) Remove(key uint64) (V, bool) {
	var zero V
	buckets := s.bucketsForRead()
	if buckets == nil {
		return zero, false
	}

	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	b := key & s.bucketMask
	var prev *entry[V]
	for e := buckets[b]; e != nil; prev, e = e, e.next {
		if e.key != key {
			continue
		}
		if prev == nil {
			buckets[b] = e.next
		} else {
			prev.next = e.next
		}
		s.size.Add(-1)
		return e.value, true
	}
	return zero, false
}

// Clear empties every bucket, taking the stripe lock of each bucket in turn.
// Buckets that share a lock are cleared under the same lock one after the other.
func (s *stripedImpl[V]) Clear() {
	buckets := s.bucketsForRead()
	if buckets == nil {
		return
	}

	for i := range buckets {
		l := s.lockFor(uint64(i))
		l.Lock()
		var removed int64
		for e := buckets[i]; e != nil; e = e.next {
			removed++
		}
		buckets[i] = nil
		if removed > 0 {
			s.size.Add(-removed)
		}
		l.Unlock()
	}
}

func (s *stripedImpl[V]) Size() int {
	return int(s.size.Load())
}

func (s *stripedImpl[V]) IsEmpty() bool {
	return s.size.Load() == 0
}
