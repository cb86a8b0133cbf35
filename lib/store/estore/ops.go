package estore

import (
	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/store/estore/internal"
	"github.com/lbrandt/cedar/lib/value"
	"github.com/lbrandt/cedar/lib/wal"
)

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

// mutate runs one mutation through the single-writer path: precheck
// against the current entry, append the record to the WAL, then apply it
// to the index. If the append fails the index is untouched and the
// operation reports an I/O failure, so callers never observe a state the
// log does not contain.
func (s *storeImpl) mutate(op wal.Op, key string, operand value.Value, precheck func(cur internal.Entry, loaded bool) error) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	if key == "" {
		return store.NewError(store.RetCInvalidKey, "key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, loaded := s.idx.Get(key)
	if precheck != nil {
		if err := precheck(cur, loaded); err != nil {
			return err
		}
	}

	version := uint64(1)
	if loaded {
		version = cur.Version + 1
	}
	rec := wal.Record{
		Seq:     s.nextSeq,
		Op:      op,
		Key:     key,
		Value:   operand,
		Version: version,
	}

	n, err := s.wal.Append(rec)
	if err != nil {
		return store.NewErrorf(store.RetCIOFailure, "wal append: %v", err)
	}
	s.nextSeq++
	metricWALAppendedBytes.Add(n)

	if err := s.idx.Apply(rec); err != nil {
		// The record is durable but not applicable; the precheck above is
		// supposed to make this impossible.
		return store.NewErrorf(store.RetCInternalError, "apply %s %q: %v", op, key, err)
	}

	opCounter(op).Inc()
	s.maybeTriggerCompaction()
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, v value.Value) error {
	if v.IsAbsent() {
		return store.NewError(store.RetCTypeMismatch, "cannot set an absent value, use Delete")
	}
	return s.mutate(wal.OpSet, key, v.Clone(), nil)
}

func (s *storeImpl) Get(key string) (value.Value, bool, error) {
	if s.closed.Load() {
		return value.Absent(), false, store.NewError(store.RetCClosed, "store is closed")
	}
	metricGetOps.Inc()
	entry, loaded := s.idx.Get(key)
	if !loaded {
		return value.Absent(), false, nil
	}
	return entry.Value.Clone(), true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if s.closed.Load() {
		return false, store.NewError(store.RetCClosed, "store is closed")
	}
	_, loaded := s.idx.Get(key)
	return loaded, nil
}

func (s *storeImpl) Delete(key string) error {
	return s.mutate(wal.OpDelete, key, value.Absent(), func(cur internal.Entry, loaded bool) error {
		if !loaded {
			return store.NewErrorf(store.RetCNotFound, "key %q does not exist", key)
		}
		return nil
	})
}

func (s *storeImpl) Push(key string, elem value.Value) error {
	return s.mutate(wal.OpPush, key, elem.Clone(), func(cur internal.Entry, loaded bool) error {
		if loaded && cur.Value.Kind() != value.KindList {
			return store.NewErrorf(store.RetCTypeMismatch, "key %q holds a %s, push requires a list", key, cur.Value.Kind())
		}
		return nil
	})
}

func (s *storeImpl) Pull(key string, elem value.Value) error {
	return s.mutate(wal.OpPull, key, elem.Clone(), func(cur internal.Entry, loaded bool) error {
		if !loaded {
			return store.NewErrorf(store.RetCNotFound, "key %q does not exist", key)
		}
		if cur.Value.Kind() != value.KindList {
			return store.NewErrorf(store.RetCTypeMismatch, "key %q holds a %s, pull requires a list", key, cur.Value.Kind())
		}
		return nil
	})
}

func (s *storeImpl) Add(key string, delta float64) (value.Value, error) {
	return s.applyDelta(wal.OpAdd, key, delta)
}

func (s *storeImpl) Subtract(key string, delta float64) (value.Value, error) {
	return s.applyDelta(wal.OpSubtract, key, delta)
}

func (s *storeImpl) applyDelta(op wal.Op, key string, delta float64) (value.Value, error) {
	var result value.Value
	err := s.mutate(op, key, value.Number(delta), func(cur internal.Entry, loaded bool) error {
		base := 0.0 // absent keys start from zero
		if loaded {
			n, ok := cur.Value.AsNumber()
			if !ok {
				return store.NewErrorf(store.RetCTypeMismatch, "key %q holds a non-numeric %s", key, cur.Value.Kind())
			}
			base = n
		}
		if op == wal.OpSubtract {
			result = value.Number(base - delta)
		} else {
			result = value.Number(base + delta)
		}
		return nil
	})
	if err != nil {
		return value.Absent(), err
	}
	return result, nil
}

func (s *storeImpl) Length(key string) (int, error) {
	if s.closed.Load() {
		return 0, store.NewError(store.RetCClosed, "store is closed")
	}
	entry, loaded := s.idx.Get(key)
	if !loaded {
		return 0, store.NewErrorf(store.RetCNotFound, "key %q does not exist", key)
	}
	n, ok := entry.Value.Length()
	if !ok {
		return 0, store.NewErrorf(store.RetCTypeMismatch, "key %q holds a %s, length requires a string or list", key, entry.Value.Kind())
	}
	return n, nil
}

func (s *storeImpl) Size() (int, error) {
	if s.closed.Load() {
		return 0, store.NewError(store.RetCClosed, "store is closed")
	}
	return s.idx.Size(), nil
}
