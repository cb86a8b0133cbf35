package estore

import (
	"fmt"
	"testing"
	"time"

	"github.com/lbrandt/cedar/lib/value"
)

func TestCompactPreservesState(t *testing.T) {
	dir := t.TempDir()
	s := openImpl(t, dir, nil)
	defer s.Close()

	for i := 0; i < 50; i++ {
		if err := s.Set(fmt.Sprintf("key-%d", i), value.Number(float64(i))); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	if err := s.Push("list", value.String("a")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Delete("key-0"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	before, err := s.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}

	if err := s.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	after, err := s.Info()
	if err != nil {
		t.Fatalf("info after compact: %v", err)
	}
	if after.Entries != before.Entries {
		t.Errorf("entry count changed: %d -> %d", before.Entries, after.Entries)
	}
	if after.SnapshotSeq == 0 {
		t.Error("expected a snapshot after compaction")
	}
	if after.SnapshotSeq != before.LastSeq {
		t.Errorf("snapshot watermark %d, expected last seq %d", after.SnapshotSeq, before.LastSeq)
	}

	// Reads are unaffected by compaction.
	for i := 1; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		if v, loaded, _ := s.Get(key); !loaded || !v.Equal(value.Number(float64(i))) {
			t.Fatalf("%s changed by compaction: loaded=%v v=%v", key, loaded, v)
		}
	}
	if loaded, _ := s.Has("key-0"); loaded {
		t.Error("deleted key resurrected by compaction")
	}
	if v, _, _ := s.Get("list"); !v.Equal(value.List(value.String("a"))) {
		t.Error("list changed by compaction")
	}
}

func TestCompactThenRecover(t *testing.T) {
	dir := t.TempDir()
	s := openImpl(t, dir, nil)

	if err := s.Set("snapshotted", value.String("old")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	// Writes after the snapshot land in the WAL tail.
	if err := s.Set("tail", value.String("new")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("snapshotted", value.String("updated")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := openImpl(t, dir, nil)
	defer s2.Close()

	if v, _, _ := s2.Get("snapshotted"); !v.Equal(value.String("updated")) {
		t.Errorf("tail record must win over snapshot entry, got %v", v)
	}
	if v, _, _ := s2.Get("tail"); !v.Equal(value.String("new")) {
		t.Errorf("tail not recovered, got %v", v)
	}
	if n, _ := s2.Size(); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
}

func TestCompactDropsSealedSegments(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.WALSegmentSize = 256
	s := openImpl(t, dir, opts)
	defer s.Close()

	for i := 0; i < 100; i++ {
		if err := s.Set(fmt.Sprintf("key-%d", i), value.String("payload payload payload")); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	before, _ := s.wal.SegmentCount()
	if before < 3 {
		t.Fatalf("expected several segments before compaction, got %d", before)
	}

	if err := s.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}

	// Everything up to the watermark lives in the snapshot now; only the
	// fresh active segment remains.
	after, err := s.wal.SegmentCount()
	if err != nil {
		t.Fatalf("segment count: %v", err)
	}
	if after != 1 {
		t.Errorf("expected 1 segment after compaction, got %d", after)
	}
}

func TestCompactEmptyStore(t *testing.T) {
	s := openImpl(t, t.TempDir(), nil)
	defer s.Close()

	// Nothing written yet, nothing to snapshot.
	if err := s.Compact(); err != nil {
		t.Fatalf("compact on empty store: %v", err)
	}
	info, err := s.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SnapshotSeq != 0 {
		t.Errorf("empty store must not write a snapshot, got watermark %d", info.SnapshotSeq)
	}
}

func TestCompactRepeated(t *testing.T) {
	dir := t.TempDir()
	s := openImpl(t, dir, nil)

	for round := 0; round < 3; round++ {
		if err := s.Set("round", value.Number(float64(round))); err != nil {
			t.Fatalf("set round %d: %v", round, err)
		}
		if err := s.Compact(); err != nil {
			t.Fatalf("compact round %d: %v", round, err)
		}
	}
	// A compaction with no new writes since the last one is fine too.
	if err := s.Compact(); err != nil {
		t.Fatalf("compact without new writes: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := openImpl(t, dir, nil)
	defer s2.Close()
	if v, _, _ := s2.Get("round"); !v.Equal(value.Number(2)) {
		t.Errorf("expected round 2 after recovery, got %v", v)
	}
}

func TestAutoCompaction(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.WALSegmentSize = 512
	opts.CompactionThresholdBytes = 2048
	s := openImpl(t, dir, opts)
	defer s.Close()

	for i := 0; i < 200; i++ {
		if err := s.Set(fmt.Sprintf("key-%d", i%20), value.String("some moderately sized payload")); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}

	// The background loop picks the trigger up asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := s.Info()
		if err != nil {
			t.Fatalf("info: %v", err)
		}
		if info.SnapshotSeq > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background compaction did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCompactConcurrentWithWrites(t *testing.T) {
	dir := t.TempDir()
	s := openImpl(t, dir, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if _, err := s.Add("counter", 1); err != nil {
				t.Errorf("add %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		if err := s.Compact(); err != nil {
			t.Fatalf("compact %d: %v", i, err)
		}
	}
	<-done

	if v, _, _ := s.Get("counter"); !v.Equal(value.Number(500)) {
		t.Errorf("expected counter 500, got %v", v)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2 := openImpl(t, dir, nil)
	defer s2.Close()
	if v, _, _ := s2.Get("counter"); !v.Equal(value.Number(500)) {
		t.Errorf("expected counter 500 after recovery, got %v", v)
	}
}
