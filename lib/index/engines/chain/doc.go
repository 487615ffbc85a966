// Package chain implements the striped-chain variant of index.ILongKeyedIndex.
//
// The index is a fixed size array of singly linked buckets where every bucket
// carries its own lock, so lock granularity equals data granularity. The bucket
// of a key is key & (capacity-1); because item keys are assigned monotonically
// the low bits already distribute perfectly and no hash is computed.
//
// Both the bucket array and the locks are allocated eagerly when the index is
// created. Use the striped package if memory for an unused index matters or if
// the lock table should be sized independently.
package chain
