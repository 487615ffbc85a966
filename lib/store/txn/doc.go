// Package txn provides the default transaction resolver of the store.
//
// The resolver keeps the set of in-doubt transactions: transactions that were
// prepared (first phase of a two-phase commit) but neither committed nor rolled
// back. On open, the prepared transactions of the persistence backend are
// replayed into the set, transactions prepared while the store runs are enlisted.
package txn
