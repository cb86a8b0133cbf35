package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Segment Manager
// --------------------------------------------------------------------------

// Manager owns the append-only segment files of a write-ahead log
// directory. Appends go to the active segment; Rotate seals the active
// segment and opens the next one, so every sealed segment is immutable.
//
// Thread-safety: all methods are safe for concurrent use. Append order is
// serialized through an internal mutex; the caller is responsible for
// assigning sequence numbers in the same order it appends.
type Manager struct {
	mu         sync.Mutex
	dir        string
	active     *os.File
	activeSeq  uint64
	activeSize int64
	sealedSize int64
	maxSegment int64
	syncAlways bool
}

// Open creates or opens the write-ahead log directory and prepares the
// active segment. maxSegment bounds the size of a single segment file
// before rotation; syncAlways forces an fsync after every append.
func Open(dir string, maxSegment int64, syncAlways bool) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	seqs, err := listSegmentSeqs(dir)
	if err != nil {
		return nil, err
	}
	activeSeq := uint64(1)
	var sealedSize int64
	if len(seqs) > 0 {
		activeSeq = seqs[len(seqs)-1]
		for _, seq := range seqs[:len(seqs)-1] {
			info, err := os.Stat(filepath.Join(dir, segmentName(seq)))
			if err != nil {
				return nil, err
			}
			sealedSize += info.Size()
		}
	}

	file, size, err := openSegment(dir, activeSeq)
	if err != nil {
		return nil, err
	}

	return &Manager{
		dir:        dir,
		active:     file,
		activeSeq:  activeSeq,
		activeSize: size,
		sealedSize: sealedSize,
		maxSegment: maxSegment,
		syncAlways: syncAlways,
	}, nil
}

// Append encodes rec and writes it to the active segment, rotating first
// when the segment is full. In always-sync mode the record is flushed to
// stable storage before Append returns.
func (m *Manager) Append(rec Record) (int, error) {
	encoded := Encode(rec)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0, os.ErrClosed
	}

	if m.maxSegment > 0 && m.activeSize > 0 && m.activeSize+int64(len(encoded)) > m.maxSegment {
		if err := m.rotateLocked(); err != nil {
			return 0, err
		}
	}

	offset := m.activeSize
	n, err := m.active.Write(encoded)
	if err != nil {
		m.discardTail(offset)
		return 0, err
	}
	m.activeSize += int64(n)

	if m.syncAlways {
		if err := m.active.Sync(); err != nil {
			m.discardTail(offset)
			return 0, err
		}
	}
	return n, nil
}

// discardTail cuts the active segment back to offset. A failed append may
// leave a partial record behind; it must not stay in front of later
// appends, or the segment becomes unreadable mid-file.
func (m *Manager) discardTail(offset int64) {
	if err := m.active.Truncate(offset); err == nil {
		m.activeSize = offset
	}
}

// Sync flushes the active segment to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return os.ErrClosed
	}
	return m.active.Sync()
}

// Rotate seals the active segment and opens the next one. The sealed
// segment is synced before the new one is created.
func (m *Manager) Rotate() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return 0, os.ErrClosed
	}
	if err := m.rotateLocked(); err != nil {
		return 0, err
	}
	return m.activeSeq, nil
}

func (m *Manager) rotateLocked() error {
	if err := m.active.Sync(); err != nil {
		return err
	}
	if err := m.active.Close(); err != nil {
		return err
	}
	m.sealedSize += m.activeSize

	next := m.activeSeq + 1
	file, size, err := openSegment(m.dir, next)
	if err != nil {
		return err
	}
	m.active = file
	m.activeSeq = next
	m.activeSize = size
	return nil
}

// ActiveSeq returns the sequence number of the active segment.
func (m *Manager) ActiveSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSeq
}

// TotalSize returns the combined byte size of all segments, sealed and
// active. Used by the engine as the compaction trigger.
func (m *Manager) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sealedSize + m.activeSize
}

// DropSealedBefore removes all sealed segments with a sequence number
// lower than keepSeq. The active segment is never removed.
func (m *Manager) DropSealedBefore(keepSeq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seqs, err := listSegmentSeqs(m.dir)
	if err != nil {
		return err
	}
	var dropped int64
	for _, seq := range seqs {
		if seq >= keepSeq || seq >= m.activeSeq {
			continue
		}
		path := filepath.Join(m.dir, segmentName(seq))
		info, statErr := os.Stat(path)
		if err := os.Remove(path); err != nil {
			return err
		}
		if statErr == nil {
			dropped += info.Size()
		}
	}
	m.sealedSize -= dropped
	if m.sealedSize < 0 {
		m.sealedSize = 0
	}
	return nil
}

// SegmentCount returns the number of segment files on disk.
func (m *Manager) SegmentCount() (int, error) {
	seqs, err := listSegmentSeqs(m.dir)
	if err != nil {
		return 0, err
	}
	return len(seqs), nil
}

// Close syncs and closes the active segment. Further appends fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	if err := m.active.Sync(); err != nil {
		_ = m.active.Close()
		m.active = nil
		return err
	}
	err := m.active.Close()
	m.active = nil
	return err
}

// --------------------------------------------------------------------------
// Segment Files
// --------------------------------------------------------------------------

const segmentSuffix = ".log"

func segmentName(seq uint64) string {
	return fmt.Sprintf("%08d%s", seq, segmentSuffix)
}

func openSegment(dir string, seq uint64) (*os.File, int64, error) {
	path := filepath.Join(dir, segmentName(seq))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

func listSegmentSeqs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, segmentSuffix), 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}
