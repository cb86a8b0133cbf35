package estore

import (
	"github.com/lbrandt/cedar/lib/snapshot"
	"github.com/lbrandt/cedar/lib/store"
)

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// maybeTriggerCompaction signals the compaction loop when the log has
// outgrown the configured threshold. Called with the writer lock held;
// the send is non-blocking so the writer path never waits on compaction.
func (s *storeImpl) maybeTriggerCompaction() {
	if s.wal.TotalSize() < s.opts.CompactionThresholdBytes {
		return
	}
	select {
	case s.compactCh <- struct{}{}:
	default:
	}
}

// compactionLoop runs compaction cycles in the background until the
// store closes. Interrupting a cycle at shutdown is safe: the WAL alone
// remains authoritative until the CURRENT pointer swap.
func (s *storeImpl) compactionLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.compactCh:
			if err := s.compact(); err != nil {
				s.log.Errorf("compaction failed: %v", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Compact forces a compaction cycle: the index is serialized into a new
// snapshot and all WAL segments it covers are dropped. Concurrent and
// repeated calls collapse into one running cycle.
func (s *storeImpl) Compact() error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	return s.compact()
}

func (s *storeImpl) compact() error {
	// Idle -> Compacting; a cycle already in flight makes this a no-op.
	if !s.compacting.CompareAndSwap(false, true) {
		return nil
	}
	defer s.compacting.Store(false)

	// Capture a consistent cut under the writer lock: every record up to
	// the watermark is in a sealed segment after the rotation, and the
	// dumped entries reflect exactly those records.
	s.mu.Lock()
	if s.nextSeq <= 1 {
		s.mu.Unlock()
		return nil
	}
	entries := s.idx.Dump()
	watermark := s.nextSeq - 1
	activeSeq, err := s.wal.Rotate()
	s.mu.Unlock()
	if err != nil {
		return store.NewErrorf(store.RetCIOFailure, "rotate wal: %v", err)
	}

	snapEntries := make([]snapshot.Entry, 0, len(entries))
	for _, e := range entries {
		snapEntries = append(snapEntries, snapshot.Entry{
			Key:     e.Key,
			Version: e.Entry.Version,
			Value:   e.Entry.Value,
		})
	}

	path, err := s.snaps.Write(snapEntries, watermark)
	if err != nil {
		return store.NewErrorf(store.RetCIOFailure, "write snapshot: %v", err)
	}

	// The CURRENT swap inside Write committed the snapshot; everything
	// below is cleanup and safe to lose in a crash.
	if err := s.snaps.Prune(watermark); err != nil {
		s.log.Warningf("prune old snapshots: %v", err)
	}
	if err := s.wal.DropSealedBefore(activeSeq); err != nil {
		s.log.Warningf("drop sealed wal segments: %v", err)
	}

	metricCompactions.Inc()
	s.log.Infof("compacted %d entries into %s (watermark %d)", len(snapEntries), path, watermark)
	return nil
}
