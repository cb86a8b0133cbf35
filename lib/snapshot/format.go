package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	"github.com/lbrandt/cedar/lib/value"
)

// --------------------------------------------------------------------------
// File Format
// --------------------------------------------------------------------------

// Snapshot layout: magic, format version, the LastSeq watermark (the
// highest WAL sequence number the snapshot covers), the entry count,
// the entries, and a CRC32 trailer over the encoded entries.

const (
	magic         = "CEDARSN\x00" // File format identifier
	formatVersion = 1
)

// Entry is one persisted index record.
type Entry struct {
	Key     string
	Version uint64
	Value   value.Value
}

// Header captures snapshot metadata.
type Header struct {
	Version uint8
	LastSeq uint64
	Count   uint64
}

var (
	// ErrInvalidSnapshot is returned for files that are not snapshots or
	// are structurally malformed.
	ErrInvalidSnapshot = errors.New("snapshot: invalid file")
	// ErrChecksum is returned when the entry payload does not match the
	// stored checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
)

// encode writes a complete snapshot to w.
func encode(w io.Writer, entries []Entry, lastSeq uint64) error {
	buf := bufio.NewWriterSize(w, 1<<20)

	if _, err := buf.WriteString(magic); err != nil {
		return err
	}
	if err := buf.WriteByte(formatVersion); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, lastSeq); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	hash := crc32.NewIEEE()
	body := io.MultiWriter(buf, hash)
	for _, entry := range entries {
		if err := writeEntry(body, entry); err != nil {
			return err
		}
	}

	if err := binary.Write(buf, binary.LittleEndian, hash.Sum32()); err != nil {
		return err
	}
	return buf.Flush()
}

// A serialized entry is at least a key length, the version, a value
// length, and one value byte. Used to bound the header's entry count
// against the file size before trusting it.
const minEntrySize = 1 + 8 + 1 + 1

// decode reads a complete snapshot of size bytes from r. Length prefixes
// inside the file are untrusted; they are capped against size so a
// corrupted prefix yields ErrInvalidSnapshot instead of an oversized
// allocation.
func decode(r io.Reader, size int64) (Header, []Entry, error) {
	buf := bufio.NewReaderSize(r, 1<<20)

	magicBytes := make([]byte, len(magic))
	if _, err := io.ReadFull(buf, magicBytes); err != nil {
		return Header{}, nil, ErrInvalidSnapshot
	}
	if string(magicBytes) != magic {
		return Header{}, nil, ErrInvalidSnapshot
	}

	var head Header
	version, err := buf.ReadByte()
	if err != nil {
		return Header{}, nil, ErrInvalidSnapshot
	}
	head.Version = version
	if head.Version != formatVersion {
		return Header{}, nil, ErrInvalidSnapshot
	}
	if err := binary.Read(buf, binary.LittleEndian, &head.LastSeq); err != nil {
		return Header{}, nil, ErrInvalidSnapshot
	}
	if err := binary.Read(buf, binary.LittleEndian, &head.Count); err != nil {
		return Header{}, nil, ErrInvalidSnapshot
	}

	if size < 0 || head.Count > uint64(size)/minEntrySize {
		return Header{}, nil, ErrInvalidSnapshot
	}

	hash := crc32.NewIEEE()
	body := io.TeeReader(buf, hash)
	entries := make([]Entry, 0, head.Count)
	for i := uint64(0); i < head.Count; i++ {
		entry, err := readEntry(body, size)
		if err != nil {
			return Header{}, nil, err
		}
		entries = append(entries, entry)
	}
	computed := hash.Sum32()

	var stored uint32
	if err := binary.Read(buf, binary.LittleEndian, &stored); err != nil {
		return Header{}, nil, ErrInvalidSnapshot
	}
	if stored != computed {
		return Header{}, nil, ErrChecksum
	}

	return head, entries, nil
}

func writeEntry(w io.Writer, entry Entry) error {
	if err := writeBytes(w, []byte(entry.Key)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, entry.Version); err != nil {
		return err
	}
	return writeBytes(w, entry.Value.EncodeBinary())
}

func readEntry(r io.Reader, limit int64) (Entry, error) {
	key, err := readBytes(r, limit)
	if err != nil {
		return Entry{}, err
	}
	var version uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Entry{}, ErrInvalidSnapshot
	}
	valBytes, err := readBytes(r, limit)
	if err != nil {
		return Entry{}, err
	}
	val, consumed, err := value.DecodeBinary(valBytes)
	if err != nil || consumed != len(valBytes) {
		return Entry{}, ErrInvalidSnapshot
	}
	return Entry{Key: string(key), Version: version, Value: val}, nil
}

func writeBytes(w io.Writer, data []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(data)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readBytes(r io.Reader, limit int64) ([]byte, error) {
	br := byteReaderOf(r)
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, ErrInvalidSnapshot
	}
	if length > uint64(limit) {
		return nil, ErrInvalidSnapshot
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, ErrInvalidSnapshot
	}
	return data, nil
}

// byteReaderOf adapts r for binary.ReadUvarint without buffering ahead,
// which would desynchronize the surrounding reads.
func byteReaderOf(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return singleByteReader{r}
}

type singleByteReader struct{ r io.Reader }

func (s singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
