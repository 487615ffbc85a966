// Package persistence selects the persistence backend of a store.
//
// Two backends are available:
//
//   - memory: keeps everything in process memory. Data survives a restart
//     (Stop followed by Start) of the same backend but not the process.
//     Available in the "github.com/ValentinKolb/itemstore/lib/store/persistence/memory" package.
//
//   - sqlite: a durable backend on top of SQLite (WAL mode, single writer).
//     Available in the "github.com/ValentinKolb/itemstore/lib/store/persistence/sqlite" package.
package persistence
