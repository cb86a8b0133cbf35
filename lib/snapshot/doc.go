// Package snapshot implements the snapshot files the cedar store uses to
// bound recovery time and write-ahead log size.
//
// A snapshot is a full serialization of the in-memory index at a known
// WAL watermark: every record with a sequence number at or below the
// watermark is covered by the snapshot, every record above it must be
// replayed on top. Files carry a magic number, a format version and a
// CRC32 over the entry payload, so a half-written or bit-rotted snapshot
// is detected and skipped during recovery.
//
// The Manager writes snapshots with a temp-file-and-rename scheme and
// swaps the CURRENT pointer file last. The swap is the commit point of a
// compaction cycle: until it happens, the previous snapshot and the
// pre-compaction log remain authoritative.
package snapshot
