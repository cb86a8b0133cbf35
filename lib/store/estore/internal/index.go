package internal

import (
	"fmt"

	"github.com/lbrandt/cedar/lib/value"
	"github.com/lbrandt/cedar/lib/wal"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type
// --------------------------------------------------------------------------

// Entry is one indexed record: the current value of a key and the
// per-key version the last applied record established.
type Entry struct {
	Value   value.Value
	Version uint64
}

// --------------------------------------------------------------------------
// In-Memory Index
// --------------------------------------------------------------------------

// Index is the in-memory key-to-entry mapping. Reads are lock-free and
// never touch disk; Apply is the only path that changes state and must be
// serialized by the caller (the engine's single-writer discipline).
// Stored values are never mutated in place: Apply always installs a fresh
// value, so a concurrent reader holding a previously loaded Entry sees a
// stable snapshot of that key.
type Index struct {
	data *xsync.MapOf[string, Entry]
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{data: xsync.NewMapOf[string, Entry]()}
}

// Get returns the entry for key.
//
// Thread-safety: safe for concurrent use with Apply.
func (idx *Index) Get(key string) (Entry, bool) {
	return idx.data.Load(key)
}

// Size returns the number of entries.
//
// Thread-safety: safe for concurrent use with Apply.
func (idx *Index) Size() int {
	return idx.data.Size()
}

// Dump returns a point-in-time copy of all entries. The caller must hold
// the writer lock for the copy to be a consistent cut.
func (idx *Index) Dump() []KeyedEntry {
	out := make([]KeyedEntry, 0, idx.data.Size())
	idx.data.Range(func(key string, entry Entry) bool {
		out = append(out, KeyedEntry{Key: key, Entry: entry})
		return true
	})
	return out
}

// KeyedEntry pairs an entry with its key for iteration and snapshots.
type KeyedEntry struct {
	Key   string
	Entry Entry
}

// Restore installs an entry directly, bypassing the version discipline.
// Only used while loading a snapshot, before the store accepts traffic.
func (idx *Index) Restore(key string, entry Entry) {
	idx.data.Store(key, entry)
}

// --------------------------------------------------------------------------
// Versioned Apply
// --------------------------------------------------------------------------

// ErrVersionGap is returned when a record's version is more than one
// ahead of the entry's current version, which means the log is missing
// records. ErrBadRecord is returned when a record's operation cannot be
// applied to the current value (a type rule violation that the engine
// would have rejected before logging).
var (
	ErrVersionGap = fmt.Errorf("index: record version gap")
	ErrBadRecord  = fmt.Errorf("index: record not applicable")
)

// Apply executes rec against the index. It is idempotent with respect to
// versions: a record whose version is at or below the entry's current
// version is a no-op, a record exactly one version ahead is applied, and
// anything further ahead fails with ErrVersionGap.
//
// Apply is the single state-transition function shared by the live write
// path and recovery replay, which keeps replay deterministic: both paths
// see exactly the same transitions.
//
// Thread-safety: Apply calls must be serialized by the caller.
func (idx *Index) Apply(rec wal.Record) error {
	cur, loaded := idx.data.Load(rec.Key)

	curVersion := uint64(0)
	if loaded {
		curVersion = cur.Version
	}
	if rec.Version <= curVersion {
		return nil
	}
	if rec.Version != curVersion+1 {
		return ErrVersionGap
	}

	switch rec.Op {
	case wal.OpSet:
		idx.data.Store(rec.Key, Entry{Value: rec.Value.Clone(), Version: rec.Version})

	case wal.OpDelete:
		if !loaded {
			return ErrBadRecord
		}
		idx.data.Delete(rec.Key)

	case wal.OpPush:
		list := value.List()
		if loaded {
			if cur.Value.Kind() != value.KindList {
				return ErrBadRecord
			}
			list = cur.Value
		}
		idx.data.Store(rec.Key, Entry{Value: list.Append(rec.Value), Version: rec.Version})

	case wal.OpPull:
		if !loaded || cur.Value.Kind() != value.KindList {
			return ErrBadRecord
		}
		pulled, _ := cur.Value.Remove(rec.Value)
		idx.data.Store(rec.Key, Entry{Value: pulled, Version: rec.Version})

	case wal.OpAdd, wal.OpSubtract:
		base := 0.0
		if loaded {
			n, ok := cur.Value.AsNumber()
			if !ok {
				return ErrBadRecord
			}
			base = n
		}
		delta, ok := rec.Value.AsNumber()
		if !ok {
			return ErrBadRecord
		}
		if rec.Op == wal.OpSubtract {
			delta = -delta
		}
		idx.data.Store(rec.Key, Entry{Value: value.Number(base + delta), Version: rec.Version})

	default:
		return ErrBadRecord
	}
	return nil
}
