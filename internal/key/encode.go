// Package key provides total-order key encoding and range predicates for the
// index subsystem. Encoded keys compare with plain byte comparison, so every
// index can order and range-scan keys without knowing column types.
package key

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/quern/quern/pkg/types"
)

// Key is an order-preserving byte encoding of one or more column values.
// Keys compare lexicographically as byte strings; equal values encode to
// equal keys, and composite keys compare column by column.
type Key string

// Type tags keep values of different kinds in disjoint key spaces. Within one
// index all keys share a column type, so cross-type order never matters, but
// the tags make composite keys self-describing and self-terminating.
const (
	tagNull     = 0x02
	tagBool     = 0x03
	tagInteger  = 0x04
	tagNumber   = 0x05
	tagDateTime = 0x06
	tagString   = 0x07
	tagBytes    = 0x08
)

// Encode encodes a tuple of column values into a single composite key.
// Column order is significant: the composite compares lexicographically.
func Encode(values ...interface{}) Key {
	var buf []byte
	for _, v := range values {
		buf = appendValue(buf, v)
	}
	return Key(buf)
}

// Single encodes one column value.
func Single(v interface{}) Key {
	return Key(appendValue(nil, v))
}

func appendValue(buf []byte, v interface{}) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, tagNull)
	case bool:
		buf = append(buf, tagBool)
		if val {
			return append(buf, 1)
		}
		return append(buf, 0)
	case int64:
		buf = append(buf, tagInteger)
		return appendOrderedInt64(buf, val)
	case int:
		buf = append(buf, tagInteger)
		return appendOrderedInt64(buf, int64(val))
	case float64:
		buf = append(buf, tagNumber)
		return appendOrderedFloat64(buf, val)
	case time.Time:
		buf = append(buf, tagDateTime)
		return appendOrderedInt64(buf, val.UnixNano())
	case string:
		buf = append(buf, tagString)
		return appendEscaped(buf, []byte(val))
	case []byte:
		buf = append(buf, tagBytes)
		return appendEscaped(buf, val)
	case types.RowID:
		buf = append(buf, tagInteger)
		return appendOrderedInt64(buf, int64(val))
	default:
		// Unreachable for schema-checked payloads.
		buf = append(buf, tagBytes)
		return appendEscaped(buf, []byte("?"))
	}
}

// appendOrderedInt64 writes a big-endian int64 with the sign bit flipped so
// negative values sort before non-negative ones.
func appendOrderedInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v)^(1<<63))
	return append(buf, b[:]...)
}

// appendOrderedFloat64 writes IEEE-754 bits transformed so byte comparison
// matches numeric comparison: positive floats get the sign bit set, negative
// floats are bitwise inverted.
func appendOrderedFloat64(buf []byte, v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	return append(buf, b[:]...)
}

// appendEscaped writes variable-length content so that no content byte equals
// the 0x00 terminator: 0x00 becomes 0x01 0x01 and 0x01 becomes 0x01 0x02.
// The terminator keeps the prefix property: "ab" sorts before "abc".
func appendEscaped(buf, content []byte) []byte {
	for _, b := range content {
		switch b {
		case 0x00:
			buf = append(buf, 0x01, 0x01)
		case 0x01:
			buf = append(buf, 0x01, 0x02)
		default:
			buf = append(buf, b)
		}
	}
	return append(buf, 0x00)
}
