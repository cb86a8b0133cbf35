package value

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// --------------------------------------------------------------------------
// Kind Definition
// --------------------------------------------------------------------------

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindAbsent Kind = iota // No value stored
	KindString             // UTF-8 string
	KindNumber             // float64 precision decimal
	KindBool               // Boolean
	KindList               // Ordered sequence of Values
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Value Type
// --------------------------------------------------------------------------

// Value is a tagged union over the closed set of storable variants.
// The zero Value is Absent. Values are treated as immutable: all
// constructors and accessors copy list contents so that no two Values
// ever alias the same backing slice.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

// Absent returns the absent Value.
func Absent() Value {
	return Value{}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// List returns a list Value. The elements are copied.
func List(elems ...Value) Value {
	copied := make([]Value, len(elems))
	for i, e := range elems {
		copied[i] = e.Clone()
	}
	return Value{kind: KindList, list: copied}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Kind returns the variant stored in v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsAbsent reports whether v holds no value.
func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Str returns the string payload. Only meaningful for KindString.
func (v Value) Str() string {
	return v.str
}

// Num returns the numeric payload. Only meaningful for KindNumber.
func (v Value) Num() float64 {
	return v.num
}

// Boolean returns the boolean payload. Only meaningful for KindBool.
func (v Value) Boolean() bool {
	return v.b
}

// Elems returns a copy of the list elements. Only meaningful for KindList.
func (v Value) Elems() []Value {
	elems := make([]Value, len(v.list))
	for i, e := range v.list {
		elems[i] = e.Clone()
	}
	return elems
}

// Len returns the raw element count of a list without copying.
func (v Value) Len() int {
	return len(v.list)
}

// Clone returns a deep copy of v. Callers can hold the result without
// aliasing any list storage of the original.
func (v Value) Clone() Value {
	if v.kind != KindList {
		return v
	}
	return List(v.list...)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Equal reports deep structural equality between v and other. Lists are
// compared element-wise in order, all other variants by exact payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsNumber coerces v to a float64. Numbers convert directly, strings
// convert if they parse as a decimal number. The boolean return value
// reports whether the coercion succeeded.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Length returns the length of v: the character (rune) count for strings
// and the element count for lists. The boolean return value reports
// whether a length is defined for this variant.
func (v Value) Length() (int, bool) {
	switch v.kind {
	case KindString:
		return utf8.RuneCountInString(v.str), true
	case KindList:
		return len(v.list), true
	default:
		return 0, false
	}
}

// Append returns a new list containing v's elements followed by elem.
// v must be a list.
func (v Value) Append(elem Value) Value {
	elems := make([]Value, 0, len(v.list)+1)
	for _, e := range v.list {
		elems = append(elems, e.Clone())
	}
	elems = append(elems, elem.Clone())
	return Value{kind: KindList, list: elems}
}

// Remove returns a new list with all elements deeply equal to elem
// removed, together with the number of removed elements. v must be a list.
func (v Value) Remove(elem Value) (Value, int) {
	elems := make([]Value, 0, len(v.list))
	removed := 0
	for _, e := range v.list {
		if e.Equal(elem) {
			removed++
			continue
		}
		elems = append(elems, e.Clone())
	}
	return Value{kind: KindList, list: elems}, removed
}

// String implements fmt.Stringer using the JSON rendering of v.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(b)
}
