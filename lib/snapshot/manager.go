package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Snapshot Manager
// --------------------------------------------------------------------------

// Manager owns the snapshot directory. Snapshots are written to a temp
// file, fsynced and renamed into place, and the CURRENT pointer file is
// swapped last with the same temp-and-rename scheme. A crash at any point
// leaves either the previous or the new snapshot fully valid.
type Manager struct {
	dir string
}

const (
	snapshotSuffix = ".snap"
	currentName    = "CURRENT"
)

// NewManager returns a snapshot manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Write persists entries as a new snapshot covering all WAL records up to
// and including lastSeq, then repoints CURRENT at it. It returns the path
// of the new snapshot file.
func (m *Manager) Write(entries []Entry, lastSeq uint64) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", err
	}

	name := snapshotName(lastSeq)
	path := filepath.Join(m.dir, name)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := encode(file, entries, lastSeq); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	if err := m.writeCurrent(name); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatest loads the newest valid snapshot. It follows CURRENT first
// and falls back to the newest readable snapshot file if the pointer is
// missing or stale. The boolean return value reports whether a snapshot
// was found; a store directory without snapshots is not an error.
func (m *Manager) LoadLatest() (Header, []Entry, bool, error) {
	if name, err := m.readCurrent(); err == nil && name != "" {
		head, entries, err := m.load(filepath.Join(m.dir, name))
		if err == nil {
			return head, entries, true, nil
		}
	}

	// CURRENT missing or pointing at an unreadable file: try the rest,
	// newest first.
	names, err := m.list()
	if err != nil {
		return Header{}, nil, false, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		head, entries, err := m.load(filepath.Join(m.dir, names[i]))
		if err != nil {
			continue
		}
		return head, entries, true, nil
	}
	return Header{}, nil, false, nil
}

// Prune removes every snapshot older than keepSeq.
func (m *Manager) Prune(keepSeq uint64) error {
	names, err := m.list()
	if err != nil {
		return err
	}
	for _, name := range names {
		seq, ok := parseSnapshotSeq(name)
		if !ok || seq >= keepSeq {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// LatestSeq returns the watermark of the snapshot CURRENT points at,
// or 0 when no snapshot exists.
func (m *Manager) LatestSeq() uint64 {
	name, err := m.readCurrent()
	if err != nil || name == "" {
		return 0
	}
	seq, ok := parseSnapshotSeq(name)
	if !ok {
		return 0
	}
	return seq
}

func (m *Manager) load(path string) (Header, []Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return Header{}, nil, err
	}
	return decode(file, info.Size())
}

func (m *Manager) list() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotSuffix) {
			continue
		}
		if _, ok := parseSnapshotSeq(entry.Name()); !ok {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// --------------------------------------------------------------------------
// CURRENT Pointer
// --------------------------------------------------------------------------

func (m *Manager) writeCurrent(name string) error {
	path := filepath.Join(m.dir, currentName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (m *Manager) readCurrent() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, currentName))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// --------------------------------------------------------------------------
// Naming
// --------------------------------------------------------------------------

func snapshotName(seq uint64) string {
	return fmt.Sprintf("%016d%s", seq, snapshotSuffix)
}

func parseSnapshotSeq(name string) (uint64, bool) {
	base := strings.TrimSuffix(name, snapshotSuffix)
	seq, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
