package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/lbrandt/cedar/lib/value"
)

// --------------------------------------------------------------------------
// Record Types
// --------------------------------------------------------------------------

// Op identifies the mutation kind a record carries.
type Op uint8

const (
	OpSet Op = iota + 1
	OpDelete
	OpPush
	OpPull
	OpAdd
	OpSubtract
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	case OpPush:
		return "push"
	case OpPull:
		return "pull"
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	default:
		return "unknown"
	}
}

func (o Op) valid() bool {
	return o >= OpSet && o <= OpSubtract
}

// Record is a single write-ahead log entry. Seq is the store-wide
// monotonic sequence number, Version the per-key version the record
// establishes when applied. Value carries the operand: the new value for
// Set, the element for Push/Pull, the delta for Add/Subtract, and is
// absent for Delete.
type Record struct {
	Seq     uint64
	Op      Op
	Key     string
	Value   value.Value
	Version uint64
}

var (
	// ErrInvalidRecord is returned for structurally malformed records.
	ErrInvalidRecord = errors.New("wal: invalid record")
	// ErrChecksum is returned when a record's CRC32 does not match.
	ErrChecksum = errors.New("wal: checksum mismatch")
)

// --------------------------------------------------------------------------
// Wire Format
// --------------------------------------------------------------------------

// A record is encoded as a uvarint payload length followed by the
// payload: op byte, seq (8 bytes LE), version (8 bytes LE), uvarint key
// length + key bytes, uvarint value length + encoded value, and a CRC32
// (IEEE) over everything before the checksum.

// Encode returns the wire encoding of rec.
func Encode(rec Record) []byte {
	valBytes := rec.Value.EncodeBinary()

	payload := make([]byte, 0, 1+8+8+2*binary.MaxVarintLen64+len(rec.Key)+len(valBytes)+4)
	payload = append(payload, byte(rec.Op))
	payload = binary.LittleEndian.AppendUint64(payload, rec.Seq)
	payload = binary.LittleEndian.AppendUint64(payload, rec.Version)
	payload = binary.AppendUvarint(payload, uint64(len(rec.Key)))
	payload = append(payload, rec.Key...)
	payload = binary.AppendUvarint(payload, uint64(len(valBytes)))
	payload = append(payload, valBytes...)

	checksum := crc32.ChecksumIEEE(payload)
	payload = binary.LittleEndian.AppendUint32(payload, checksum)

	out := make([]byte, 0, binary.MaxVarintLen64+len(payload))
	out = binary.AppendUvarint(out, uint64(len(payload)))
	return append(out, payload...)
}

// Decode decodes one record from the front of data, returning the record
// and the number of bytes consumed. ErrInvalidRecord signals a truncated
// or malformed record, ErrChecksum a record whose body does not match its
// stored checksum.
func Decode(data []byte) (Record, int, error) {
	var rec Record

	length, n := binary.Uvarint(data)
	if n <= 0 {
		return rec, 0, ErrInvalidRecord
	}
	if uint64(len(data)-n) < length {
		return rec, 0, ErrInvalidRecord
	}
	payload := data[n : n+int(length)]
	if len(payload) < 1+8+8+2+4 {
		return rec, 0, ErrInvalidRecord
	}

	body := payload[:len(payload)-4]
	stored := binary.LittleEndian.Uint32(payload[len(payload)-4:])
	if crc32.ChecksumIEEE(body) != stored {
		return rec, 0, ErrChecksum
	}

	rec.Op = Op(body[0])
	if !rec.Op.valid() {
		return rec, 0, ErrInvalidRecord
	}
	rec.Seq = binary.LittleEndian.Uint64(body[1:9])
	rec.Version = binary.LittleEndian.Uint64(body[9:17])
	pos := 17

	keyLen, read := binary.Uvarint(body[pos:])
	if read <= 0 {
		return rec, 0, ErrInvalidRecord
	}
	pos += read
	if uint64(len(body)-pos) < keyLen {
		return rec, 0, ErrInvalidRecord
	}
	rec.Key = string(body[pos : pos+int(keyLen)])
	pos += int(keyLen)

	valLen, read := binary.Uvarint(body[pos:])
	if read <= 0 {
		return rec, 0, ErrInvalidRecord
	}
	pos += read
	if uint64(len(body)-pos) < valLen {
		return rec, 0, ErrInvalidRecord
	}
	val, consumed, err := value.DecodeBinary(body[pos : pos+int(valLen)])
	if err != nil || consumed != int(valLen) {
		return rec, 0, ErrInvalidRecord
	}
	rec.Value = val

	return rec, n + int(length), nil
}
