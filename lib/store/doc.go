// Package store defines the public interface of the cedar key-value
// store and its error model.
//
// The IStore interface carries the full operation surface: plain
// key-value access (Set, Get, Has, Delete), the typed mutation operators
// (Push, Pull, Add, Subtract, Length) and store-level queries (Size,
// Info). Implementations must guarantee that every mutating operation is
// atomic from the caller's perspective and that returned values are
// copies, never references into internal state.
//
// Errors are reported through the Error type, which pairs a RetCode with
// a message. Caller-input faults (InvalidKey, NotFound, TypeMismatch)
// are ordinary typed results; CorruptLog is fatal at open time and
// IOFailure signals that the underlying storage rejected a write, in
// which case the failed operation has not been applied.
//
// The estore subpackage provides the embedded, crash-consistent
// implementation; the testing subpackage provides a conformance suite
// any implementation can be run against.
package store
