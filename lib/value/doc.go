// Package value implements the typed value model of the cedar store.
// It defines a closed tagged union over the storable variants (absent,
// string, number, bool, list) together with the conversion rules the
// mutation engine relies on.
//
// The package focuses on:
//   - A closed set of variants with a zero value that means "absent"
//   - Immutability: constructors and accessors copy list storage so no
//     two Values alias the same backing slice
//   - Coercion rules: AsNumber converts numbers directly and strings
//     that parse as decimals, Length is defined for strings (rune count)
//     and lists (element count)
//   - Deep structural equality for list element matching
//   - A compact binary codec used by the write-ahead log and snapshot
//     files, and a JSON codec used by the command-line interface
//
// Mutation helpers (Append, Remove) return fresh list values instead of
// modifying in place, which keeps concurrently read values stable without
// locking.
package value
