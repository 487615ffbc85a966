// Package sqlite provides a durable persistence backend on top of SQLite.
//
// The database is opened on Start and closed on Stop. It is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - a single connection, SQLite only supports one writer at a time
//
// Unique-key generators reserve a range of values per database round trip, a
// restart skips whatever was left of the last range.
package sqlite
