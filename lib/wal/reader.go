package wal

import (
	"errors"
	"os"
	"path/filepath"
)

// --------------------------------------------------------------------------
// Replay Reader
// --------------------------------------------------------------------------

// Segment describes one on-disk segment file.
type Segment struct {
	Seq  uint64
	Path string
}

// ListSegments returns the segment files of dir in ascending sequence
// order. A missing directory yields an empty list.
func ListSegments(dir string) ([]Segment, error) {
	seqs, err := listSegmentSeqs(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	segments := make([]Segment, 0, len(seqs))
	for _, seq := range seqs {
		segments = append(segments, Segment{Seq: seq, Path: filepath.Join(dir, segmentName(seq))})
	}
	return segments, nil
}

// ReadSegment decodes all records of one segment file. validLen is the
// byte offset just past the last fully decoded record.
//
// A torn record at the end of the segment is reported through the
// truncated return value: the records decoded up to that point are
// returned and the error is nil. This is the expected shape of a crash
// mid-append and only acceptable on the final segment of a log; the
// caller decides whether a truncated tail is tolerable and must discard
// the bytes past validLen before appending to the segment again. A
// checksum mismatch is always returned as an error.
func ReadSegment(path string) (records []Record, validLen int64, truncated bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, false, err
	}

	off := 0
	for off < len(data) {
		rec, consumed, err := Decode(data[off:])
		if err != nil {
			if errors.Is(err, ErrChecksum) {
				return records, int64(off), false, err
			}
			return records, int64(off), true, nil
		}
		records = append(records, rec)
		off += consumed
	}
	return records, int64(off), false, nil
}
