// Package engines bundles the index implementations and selects one by name.
//
//   - striped: striped-linked, lazily allocated, lock table sized independently (default)
//   - chain: striped-chain, one lock per bucket, eagerly allocated
//   - sharded: sharded-native, xsync maps selected by modulo, no size tracking
package engines
