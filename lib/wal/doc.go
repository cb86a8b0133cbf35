// Package wal implements the write-ahead log of the cedar store: an
// append-only sequence of mutation records spread over numbered segment
// files.
//
// The package contains:
//   - Record: one mutation with a store-wide sequence number, a per-key
//     version and the operation operand, encoded with a length prefix and
//     a CRC32 checksum
//   - Manager: the writer side, owning the active segment, rotation and
//     the sync policy (per-append fsync or caller-driven batching)
//   - ReadSegment/ListSegments: the replay side used during recovery
//
// Durability contract: with per-append sync enabled, Append returns only
// after the record reached stable storage. Sealed segments are never
// written again, so compaction can delete them wholesale once a snapshot
// covers their records. A torn record at the tail of the last segment is
// treated as a crash mid-append and truncates the replay; a checksum
// mismatch anywhere else is corruption and surfaces as an error.
package wal
