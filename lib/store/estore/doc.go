// Package estore implements the embedded, crash-consistent cedar store
// behind the store.IStore interface.
//
// Architecture:
//
//   - All reads are served from an in-memory index (a lock-free
//     concurrent map) and never touch disk.
//   - All mutations run through a single-writer path: under the writer
//     lock the engine validates the operation against the current entry,
//     appends a record to the write-ahead log and applies it to the
//     index. WAL append order therefore always matches index apply
//     order, and an append failure leaves the index untouched.
//   - A background compactor serializes the index into a snapshot once
//     the log outgrows its configured threshold, then drops the sealed
//     segments the snapshot covers. The snapshot commit point is an
//     atomic pointer-file swap, so a crash mid-compaction never loses
//     data.
//   - On Open, the engine loads the newest valid snapshot and replays
//     the log written after it. Replay shares the exact apply function
//     with the live write path, which makes recovery deterministic.
//     Out-of-order sequences or per-key version gaps are corruption and
//     the store refuses to open.
//
// Durability: with Options.WALSync set to SyncAlways every acknowledged
// mutation has been flushed to stable storage. SyncBatched flushes on a
// background interval instead and may lose the tail of the log on a
// crash, but never its consistency.
//
// A LOCK file with an exclusive flock prevents two processes from
// opening the same store directory.
package estore
