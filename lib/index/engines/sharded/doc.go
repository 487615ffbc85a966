// Package sharded implements the sharded-native variant of index.ILongKeyedIndex.
//
// The index consists of a fixed number of xsync.MapOf instances that are all
// created eagerly. A key is routed to shard key % shardCount. Each shard
// synchronizes itself, there is no lock shared between shards.
//
// Each map value is the head of a per-key chain, so a repeated Put for the same
// key stacks the value exactly like the chained variants (striped, chain).
// The only difference is that there is no Size/IsEmpty: the type does not
// implement index.ISizedIndex, use index.SizeOf to check.
package sharded
