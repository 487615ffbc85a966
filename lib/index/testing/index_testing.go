package testing

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/itemstore/lib/index"
)

// IndexFactory is a function that creates a new, empty instance of an index implementation
type IndexFactory func() index.ILongKeyedIndex[string]

// RunIndexTests runs a comprehensive test suite for an index implementation.
func RunIndexTests(t *testing.T, name string, factory IndexFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("EmptyIndex", func(t *testing.T) {
			testEmptyIndex(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("DuplicateKeys", func(t *testing.T) {
			testDuplicateKeys(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("RandomSequence", func(t *testing.T) {
			testRandomSequence(t, factory())
		})

		t.Run("ConcurrentInsert", func(t *testing.T) {
			testConcurrentInsert(t, factory())
		})

		t.Run("ConcurrentMixed", func(t *testing.T) {
			testConcurrentMixed(t, factory())
		})

		t.Run("ClearWhileReading", func(t *testing.T) {
			testClearWhileReading(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// expectSize checks the size of the index if the implementation supports it
func expectSize(t testing.TB, idx index.ILongKeyedIndex[string], expected int) {
	t.Helper()
	size, ok := index.SizeOf(idx)
	if !ok {
		return
	}
	if size != expected {
		t.Errorf("Expected size %d, got %d", expected, size)
	}
}

func expectValue(t testing.TB, idx index.ILongKeyedIndex[string], key uint64, expected string) {
	t.Helper()
	value, ok := idx.Get(key)
	if !ok {
		t.Errorf("Expected key %d to exist", key)
		return
	}
	if value != expected {
		t.Errorf("Expected value %q for key %d, got %q", expected, key, value)
	}
}

func expectAbsent(t testing.TB, idx index.ILongKeyedIndex[string], key uint64) {
	t.Helper()
	if value, ok := idx.Get(key); ok {
		t.Errorf("Expected key %d to be absent, got %q", key, value)
	}
}

// collidingKey returns keys that land in the same bucket for every valid capacity (max 2^31)
func collidingKey(base uint64, i int) uint64 {
	return base + uint64(i)<<31
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, idx index.ILongKeyedIndex[string]) {
	for i := uint64(0); i < 1000; i++ {
		idx.Put(i, fmt.Sprintf("value-%d", i))
	}

	for i := uint64(0); i < 1000; i++ {
		expectValue(t, idx, i, fmt.Sprintf("value-%d", i))
	}

	expectAbsent(t, idx, 1000)
	expectAbsent(t, idx, ^uint64(0))
	expectSize(t, idx, 1000)

	// large keys use the same low bits as small ones
	idx.Put(1<<40, "large")
	expectValue(t, idx, 1<<40, "large")
	expectValue(t, idx, 0, "value-0")
}

func testRemove(t *testing.T, idx index.ILongKeyedIndex[string]) {
	idx.Put(1, "one")
	idx.Put(2, "two")

	value, ok := idx.Remove(1)
	if !ok || value != "one" {
		t.Errorf("Expected Remove(1) to return \"one\", got %q (ok=%v)", value, ok)
	}
	expectAbsent(t, idx, 1)
	expectValue(t, idx, 2, "two")
	expectSize(t, idx, 1)

	if value, ok := idx.Remove(1); ok {
		t.Errorf("Expected second Remove(1) to return nothing, got %q", value)
	}
	if value, ok := idx.Remove(42); ok {
		t.Errorf("Expected Remove of an unknown key to return nothing, got %q", value)
	}
	expectSize(t, idx, 1)
}

func testEmptyIndex(t *testing.T, idx index.ILongKeyedIndex[string]) {
	expectAbsent(t, idx, 0)
	if _, ok := idx.Remove(0); ok {
		t.Errorf("Expected Remove on an empty index to return nothing")
	}
	idx.Clear()
	expectSize(t, idx, 0)

	if sized, ok := idx.(index.ISizedIndex[string]); ok && !sized.IsEmpty() {
		t.Errorf("Expected a new index to be empty")
	}
}

func testClear(t *testing.T, idx index.ILongKeyedIndex[string]) {
	for i := uint64(0); i < 500; i++ {
		idx.Put(i, "v")
		idx.Put(collidingKey(i, 1), "c")
	}

	idx.Clear()

	for i := uint64(0); i < 500; i++ {
		expectAbsent(t, idx, i)
		expectAbsent(t, idx, collidingKey(i, 1))
	}
	expectSize(t, idx, 0)

	// the index is still usable
	idx.Put(7, "seven")
	expectValue(t, idx, 7, "seven")
	expectSize(t, idx, 1)
}

func testDuplicateKeys(t *testing.T, idx index.ILongKeyedIndex[string]) {
	idx.Put(5, "A")
	idx.Put(5, "B")

	expectValue(t, idx, 5, "B")
	expectSize(t, idx, 2)

	value, ok := idx.Remove(5)
	if !ok || value != "B" {
		t.Errorf("Expected first Remove(5) to return \"B\", got %q", value)
	}
	expectSize(t, idx, 1)
	expectValue(t, idx, 5, "A")

	value, ok = idx.Remove(5)
	if !ok || value != "A" {
		t.Errorf("Expected second Remove(5) to return \"A\", got %q", value)
	}
	expectSize(t, idx, 0)
	if _, ok := idx.Get(5); ok {
		t.Errorf("Expected key 5 to be gone after removing both entries")
	}
	if _, ok := idx.Remove(5); ok {
		t.Errorf("Expected a third Remove(5) to report not found")
	}
}

func testConcurrentInsert(t *testing.T, idx index.ILongKeyedIndex[string]) {
	const (
		numWorkers    = 8
		keysPerWorker = 5_000
	)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < keysPerWorker; i++ {
				key := uint64(i*numWorkers + worker)
				idx.Put(key, fmt.Sprintf("w%d-%d", worker, i))
			}
		}(w)
	}
	wg.Wait()

	expectSize(t, idx, numWorkers*keysPerWorker)

	missing := 0
	for key := uint64(0); key < numWorkers*keysPerWorker; key++ {
		if _, ok := idx.Get(key); !ok {
			missing++
		}
	}
	if missing > 0 {
		t.Errorf("Expected all %d keys to exist, %d are missing", numWorkers*keysPerWorker, missing)
	}
}

func testConcurrentMixed(t *testing.T, idx index.ILongKeyedIndex[string]) {
	const (
		numWorkers    = 8
		keysPerWorker = 2_000
	)

	var (
		wg         sync.WaitGroup
		errorCount atomic.Int32
	)
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			base := uint64(worker * keysPerWorker)

			// every worker owns its key range, keys are put, read and every second one removed
			for i := uint64(0); i < keysPerWorker; i++ {
				idx.Put(base+i, "x")
				if _, ok := idx.Get(base + i); !ok {
					errorCount.Add(1)
				}
				if i%2 == 0 {
					if _, ok := idx.Remove(base + i); !ok {
						errorCount.Add(1)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if errorCount.Load() > 0 {
		t.Errorf("Encountered %d lost operations", errorCount.Load())
	}
	expectSize(t, idx, numWorkers*keysPerWorker/2)

	for key := uint64(0); key < numWorkers*keysPerWorker; key++ {
		_, ok := idx.Get(key)
		if ok != (key%keysPerWorker%2 == 1) {
			t.Fatalf("Unexpected presence %v for key %d", ok, key)
		}
	}
}

func testClearWhileReading(t *testing.T, idx index.ILongKeyedIndex[string]) {
	for i := uint64(0); i < 10_000; i++ {
		idx.Put(i, "v")
	}

	var wg sync.WaitGroup
	wg.Add(4)
	for w := 0; w < 4; w++ {
		go func() {
			defer wg.Done()
			for i := uint64(0); i < 10_000; i++ {
				idx.Get(i)
				idx.Remove(i + 10_000)
			}
		}()
	}
	idx.Clear()
	wg.Wait()

	for i := uint64(0); i < 10_000; i += 97 {
		expectAbsent(t, idx, i)
	}
	expectSize(t, idx, 0)
}
