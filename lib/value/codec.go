package value

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Binary Codec
// --------------------------------------------------------------------------

// Binary layout: one tag byte identifying the Kind, followed by a
// kind-specific payload. Strings are uvarint length + bytes, numbers are
// 8 little-endian bytes (IEEE 754), booleans one byte, lists a uvarint
// element count followed by the encoded elements. Absent has no payload.

const (
	tagAbsent byte = 0x00
	tagString byte = 0x01
	tagNumber byte = 0x02
	tagBool   byte = 0x03
	tagList   byte = 0x04
)

// AppendBinary appends the binary encoding of v to dst and returns the
// extended slice.
func (v Value) AppendBinary(dst []byte) []byte {
	switch v.kind {
	case KindAbsent:
		return append(dst, tagAbsent)
	case KindString:
		dst = append(dst, tagString)
		dst = binary.AppendUvarint(dst, uint64(len(v.str)))
		return append(dst, v.str...)
	case KindNumber:
		dst = append(dst, tagNumber)
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.num))
	case KindBool:
		dst = append(dst, tagBool)
		if v.b {
			return append(dst, 1)
		}
		return append(dst, 0)
	case KindList:
		dst = append(dst, tagList)
		dst = binary.AppendUvarint(dst, uint64(len(v.list)))
		for _, e := range v.list {
			dst = e.AppendBinary(dst)
		}
		return dst
	default:
		// Unreachable for values built through the constructors.
		return append(dst, tagAbsent)
	}
}

// EncodeBinary returns the binary encoding of v.
func (v Value) EncodeBinary() []byte {
	return v.AppendBinary(nil)
}

// DecodeBinary decodes a Value from the front of data, returning the
// value and the number of bytes consumed.
func DecodeBinary(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Value{}, 0, fmt.Errorf("value: empty input")
	}
	tag := data[0]
	pos := 1
	switch tag {
	case tagAbsent:
		return Value{}, pos, nil
	case tagString:
		length, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return Value{}, 0, fmt.Errorf("value: invalid string length")
		}
		pos += n
		if uint64(len(data)-pos) < length {
			return Value{}, 0, fmt.Errorf("value: truncated string payload")
		}
		s := string(data[pos : pos+int(length)])
		return Value{kind: KindString, str: s}, pos + int(length), nil
	case tagNumber:
		if len(data)-pos < 8 {
			return Value{}, 0, fmt.Errorf("value: truncated number payload")
		}
		bits := binary.LittleEndian.Uint64(data[pos:])
		return Value{kind: KindNumber, num: math.Float64frombits(bits)}, pos + 8, nil
	case tagBool:
		if len(data)-pos < 1 {
			return Value{}, 0, fmt.Errorf("value: truncated bool payload")
		}
		return Value{kind: KindBool, b: data[pos] != 0}, pos + 1, nil
	case tagList:
		count, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return Value{}, 0, fmt.Errorf("value: invalid list length")
		}
		pos += n
		if count > uint64(len(data)-pos) {
			// Each element takes at least one byte; reject early rather
			// than allocating an oversized slice from corrupt input.
			return Value{}, 0, fmt.Errorf("value: list length exceeds input")
		}
		elems := make([]Value, 0, count)
		for i := uint64(0); i < count; i++ {
			elem, consumed, err := DecodeBinary(data[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			elems = append(elems, elem)
			pos += consumed
		}
		return Value{kind: KindList, list: elems}, pos, nil
	default:
		return Value{}, 0, fmt.Errorf("value: unknown tag 0x%02x", tag)
	}
}

// --------------------------------------------------------------------------
// JSON Codec
// --------------------------------------------------------------------------

// MarshalJSON renders v as its natural JSON form. Absent is rendered as
// null, which only occurs when a caller marshals a missing value directly.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAbsent:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if len(v.list) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("value: cannot marshal kind %s", v.kind)
	}
}

// UnmarshalJSON parses a JSON document into a Value. Objects are
// rejected: the store's value model has no map variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON parses a JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

func fromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case []interface{}:
		elems := make([]Value, 0, len(t))
		for _, e := range t {
			elem, err := fromInterface(e)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, elem)
		}
		return Value{kind: KindList, list: elems}, nil
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON type %T", raw)
	}
}
