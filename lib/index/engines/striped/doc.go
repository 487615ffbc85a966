// Package striped implements the striped-linked variant of index.ILongKeyedIndex.
//
// The index is a fixed size array of singly linked buckets (key & (capacity-1))
// protected by a separate table of locks (key & (lockCount-1)). Since both sizes
// are powers of two and the lock table is never larger than the bucket array,
// every bucket is covered by exactly one lock, while a lock usually covers many
// buckets. Writes to different buckets that share a lock are therefore
// serialized even though they are logically independent.
//
// Allocation is lazy:
//   - the bucket array is allocated on the first Put
//   - each lock is created on the first access to its slot
//
// Both paths are double-checked under a dedicated creation lock, so at most one
// allocation ever happens per array and per lock slot. Get, Remove and Clear on
// an index that was never written to are no-ops.
//
// The entry count is kept in an atomic counter, Size and IsEmpty never take a bucket lock.
package striped
