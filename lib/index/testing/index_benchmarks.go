package testing

import (
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/itemstore/lib/index"
)

// RunIndexBenchmarks runs all benchmarks for an index implementation
func RunIndexBenchmarks(b *testing.B, name string, factory IndexFactory) {
	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, factory())
	})

	b.Run("PutRemove", func(b *testing.B) {
		benchmarkPutRemove(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation, keys are assigned monotonically like item ids
func benchmarkPut(b *testing.B, idx index.ILongKeyedIndex[string]) {
	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx.Put(counter.Add(1), "value")
		}
	})
}

func benchmarkGet(b *testing.B, idx index.ILongKeyedIndex[string]) {
	// Prepare data
	numKeys := uint64(100_000)
	for i := uint64(0); i < numKeys; i++ {
		idx.Put(i, "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := uint64(0)
		for pb.Next() {
			idx.Get(counter % numKeys)
			counter++
		}
	})
}

func benchmarkGetNot(b *testing.B, idx index.ILongKeyedIndex[string]) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := uint64(0)
		for pb.Next() {
			idx.Get(counter)
			counter++
		}
	})
}

// Benchmark for register/unregister pairs as issued by the message store
func benchmarkPutRemove(b *testing.B, idx index.ILongKeyedIndex[string]) {
	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := counter.Add(1)
			idx.Put(key, "value")
			idx.Remove(key)
		}
	})
}

func benchmarkMixedUsage(b *testing.B, idx index.ILongKeyedIndex[string]) {
	// Number of pre-populated keys
	numKeys := uint64(100_000)
	for i := uint64(0); i < numKeys; i++ {
		idx.Put(i, "value")
	}

	// Counter for atomic access
	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			key := counter.Add(1) % numKeys

			// Select operation (0-5: get, 6-7: put, 8-9: remove)
			switch localCounter % 10 {
			case 6, 7:
				idx.Put(key, "mixed")
			case 8, 9:
				idx.Remove(key)
			default:
				idx.Get(key)
			}

			localCounter++
		}
	})
}
