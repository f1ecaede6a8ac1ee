// Package storage implements the Task Store and Plant Directory contracts.
//
// Backends:
//   - memory: maps guarded by a mutex
//   - file: memory backend plus a snapshot/journal pair for durability
//   - sqlite: modernc.org/sqlite with a precomputed due_day column
package storage
