package store

import (
	"errors"
	"fmt"

	"github.com/lbrandt/cedar/lib/value"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with a cedar key-value
// store. All write operations return an error (nil on success), while
// read operations return the requested data along with an error.
// Returned values are always copies; callers never hold references into
// the store's own state.
type IStore interface {
	// Set inserts or replaces the value for a key.
	Set(key string, v value.Value) (err error)
	// Get returns the value for a key. The boolean return value indicates
	// whether the key was found; a missing key is not an error.
	Get(key string) (v value.Value, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// Delete removes a key-value pair. Deleting a missing key fails with
	// RetCNotFound.
	Delete(key string) (err error)
	// Push appends elem to the list stored at key. A missing key is
	// created as a singleton list; a non-list value fails with
	// RetCTypeMismatch.
	Push(key string, elem value.Value) (err error)
	// Pull removes all elements deeply equal to elem from the list stored
	// at key. A missing key fails with RetCNotFound, a non-list value with
	// RetCTypeMismatch. Pulling an element that is not in the list is not
	// an error.
	Pull(key string, elem value.Value) (err error)
	// Add adds delta to the numeric value stored at key and returns the
	// new value. A missing key is treated as zero; a non-numeric value
	// fails with RetCTypeMismatch.
	Add(key string, delta float64) (v value.Value, err error)
	// Subtract subtracts delta from the numeric value stored at key and
	// returns the new value. Same rules as Add.
	Subtract(key string, delta float64) (v value.Value, err error)
	// Length returns the length of the value stored at key: the character
	// count for strings, the element count for lists. A missing key fails
	// with RetCNotFound, other variants with RetCTypeMismatch.
	Length(key string) (n int, err error)
	// Size returns the total number of entries in the store.
	Size() (n int, err error)
	// Info returns metadata about the store and its on-disk state.
	Info() (info StoreInfo, err error)
	// Close flushes pending log writes, stops background work and
	// releases the storage handles. Close is idempotent.
	Close() (err error)
}

// StoreInfo reports on the state of a store. Size figures are estimates.
type StoreInfo struct {
	Entries          int    `json:"entries"`
	WALSegments      int    `json:"wal_segments"`
	WALBytes         int64  `json:"wal_bytes"`
	SnapshotSeq      uint64 `json:"snapshot_seq"`
	LastSeq          uint64 `json:"last_seq"`
	EstimatedBytes   int    `json:"estimated_bytes"`
	MedianValueBytes int    `json:"median_value_bytes"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewErrorf creates a new store Error with a formatted message.
func NewErrorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInvalidKey                   // 1: Empty or malformed key.
	RetCNotFound                     // 2: Operation requires an existing key.
	RetCTypeMismatch                 // 3: Stored variant incompatible with the operation.
	RetCCorruptLog                   // 4: Recovery hit an out-of-order or malformed record.
	RetCIOFailure                    // 5: Underlying storage unavailable.
	RetCClosed                       // 6: Store already closed.
	RetCInternalError                // 7: Operation failed due to an internal error.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidKey:
		return "InvalidKey"
	case RetCNotFound:
		return "NotFound"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCCorruptLog:
		return "CorruptLog"
	case RetCIOFailure:
		return "IOFailure"
	case RetCClosed:
		return "Closed"
	case RetCInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// CodeOf extracts the RetCode from err, or RetCInternalError for foreign
// error types.
func CodeOf(err error) RetCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err carries RetCNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == RetCNotFound }

// IsTypeMismatch reports whether err carries RetCTypeMismatch.
func IsTypeMismatch(err error) bool { return CodeOf(err) == RetCTypeMismatch }

// IsInvalidKey reports whether err carries RetCInvalidKey.
func IsInvalidKey(err error) bool { return CodeOf(err) == RetCInvalidKey }

// IsCorruptLog reports whether err carries RetCCorruptLog.
func IsCorruptLog(err error) bool { return CodeOf(err) == RetCCorruptLog }
