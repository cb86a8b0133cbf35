package estore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lbrandt/cedar/lib/logger"
	"github.com/lbrandt/cedar/lib/snapshot"
	"github.com/lbrandt/cedar/lib/store"
	"github.com/lbrandt/cedar/lib/store/estore/internal"
	"github.com/lbrandt/cedar/lib/wal"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	walDirName      = "wal"
	snapshotDirName = "snapshots"
	lockFileName    = "LOCK"

	defaultSegmentSize         = 64 << 20  // 64 MB per WAL segment
	defaultCompactionThreshold = 128 << 20 // compact once the log exceeds 128 MB
	defaultSyncInterval        = 100 * time.Millisecond
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// SyncMode controls when WAL appends reach stable storage.
type SyncMode uint8

const (
	// SyncAlways flushes every append before it returns. This is the
	// store's full durability guarantee.
	SyncAlways SyncMode = iota
	// SyncBatched flushes on a background interval, trading the tail of
	// the log on a crash for append throughput.
	SyncBatched
)

// Options configures the embedded store during Open.
type Options struct {
	WALSync                  SyncMode      // When appends are flushed (default: SyncAlways)
	WALSyncInterval          time.Duration // Flush interval for SyncBatched (0 = 100ms)
	WALSegmentSize           int64         // Max size of one segment file (0 = 64 MB)
	CompactionThresholdBytes int64         // Total log size that triggers compaction (0 = 128 MB)
}

// DefaultOptions returns the default store options.
func DefaultOptions() *Options {
	return &Options{
		WALSync:                  SyncAlways,
		WALSyncInterval:          defaultSyncInterval,
		WALSegmentSize:           defaultSegmentSize,
		CompactionThresholdBytes: defaultCompactionThreshold,
	}
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.WALSyncInterval <= 0 {
		opts.WALSyncInterval = defaultSyncInterval
	}
	if opts.WALSegmentSize <= 0 {
		opts.WALSegmentSize = defaultSegmentSize
	}
	if opts.CompactionThresholdBytes <= 0 {
		opts.CompactionThresholdBytes = defaultCompactionThreshold
	}
	return opts
}

// --------------------------------------------------------------------------
// Store Implementation
// --------------------------------------------------------------------------

type storeImpl struct {
	path string
	opts Options
	log  logger.ILogger

	// mu serializes the writer path: sequence assignment, WAL append and
	// index apply happen under it, in that order. Reads never take it.
	mu      sync.Mutex
	idx     *internal.Index
	wal     *wal.Manager
	snaps   *snapshot.Manager
	nextSeq uint64

	lockFile   *os.File
	closed     atomic.Bool
	compacting atomic.Bool
	compactCh  chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// Open opens or creates a store rooted at path. It loads the newest valid
// snapshot, replays the write-ahead log written after it, and only then
// starts accepting traffic. A second Open on the same path fails while
// the first store is open.
//
// Thread-safety: the returned store is safe for concurrent use.
func Open(path string, opts *Options) (store.IStore, error) {
	if path == "" {
		return nil, store.NewError(store.RetCInvalidKey, "store path must not be empty")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	resolved := opts.withDefaults()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, store.NewErrorf(store.RetCIOFailure, "create store directory: %v", err)
	}

	lockFile, err := acquireLock(filepath.Join(path, lockFileName))
	if err != nil {
		return nil, err
	}

	s := &storeImpl{
		path:      path,
		opts:      resolved,
		log:       logger.GetLogger("estore"),
		idx:       internal.NewIndex(),
		snaps:     snapshot.NewManager(filepath.Join(path, snapshotDirName)),
		compactCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	// Recovery runs before the WAL manager takes over the active segment:
	// it may cut a torn record off the tail, and the manager must see the
	// repaired file.
	if err := s.recover(); err != nil {
		_ = releaseLock(lockFile)
		return nil, err
	}

	walMgr, err := wal.Open(filepath.Join(path, walDirName), resolved.WALSegmentSize, resolved.WALSync == SyncAlways)
	if err != nil {
		_ = releaseLock(lockFile)
		return nil, store.NewErrorf(store.RetCIOFailure, "open wal: %v", err)
	}
	s.wal = walMgr
	s.lockFile = lockFile

	s.wg.Add(1)
	go s.compactionLoop()
	if resolved.WALSync == SyncBatched {
		s.wg.Add(1)
		go s.syncLoop()
	}

	s.log.Infof("store opened at %s (%d entries, last seq %d)", path, s.idx.Size(), s.nextSeq-1)
	return s, nil
}

// Close flushes pending WAL writes, stops the background tasks and
// releases the storage handles. Close is idempotent.
func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	s.wg.Wait()

	var firstErr error
	if err := s.wal.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		firstErr = store.NewErrorf(store.RetCIOFailure, "close wal: %v", err)
	}
	if err := releaseLock(s.lockFile); err != nil && firstErr == nil {
		firstErr = store.NewErrorf(store.RetCIOFailure, "release lock: %v", err)
	}
	s.log.Infof("store at %s closed", s.path)
	return firstErr
}

// syncLoop flushes the WAL on a fixed interval in batched mode. A final
// flush happens in Close via the WAL manager itself.
func (s *storeImpl) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.WALSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.wal.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
				s.log.Errorf("wal sync failed: %v", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// --------------------------------------------------------------------------
// Lock File
// --------------------------------------------------------------------------

func acquireLock(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, store.NewErrorf(store.RetCIOFailure, "open lock file: %v", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, store.NewError(store.RetCIOFailure, "store is locked by another process")
		}
		return nil, store.NewErrorf(store.RetCIOFailure, "lock store: %v", err)
	}
	return file, nil
}

func releaseLock(file *os.File) error {
	if file == nil {
		return nil
	}
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	return file.Close()
}
