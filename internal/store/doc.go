// Package store wraps the encrypted SQLite library file shared with the host
// DJ application.
//
// The schema is owned by the host; this package only opens, authenticates
// and configures connections, and classifies driver failures.
//
// # Connection Setup
//
// Every pooled connection runs a connect hook that:
//   - issues PRAGMA key before anything reads the file
//   - reads sqlite_master to prove the key
//   - switches to WAL journal and NORMAL synchronous mode
//
// The DSN requests _txlock=immediate so BEGIN acquires the write lock. All
// insert-if-absent writes in this repository run inside such a transaction
// (see WithTx), which serializes them against writers in other processes.
//
// Link against SQLCipher by building with -tags libsqlite3 and a
// libsqlite3 that is SQLCipher. Without it the key pragma is a no-op.
//
// # Errors
//
// Driver errors are mapped onto ErrorCode values by Classify; callers test
// them with IsNotFound, IsConflict, IsUnavailable, IsConfiguration and
// IsExhausted.
package store
