// Package types provides the core data types for Quern: row identifiers,
// typed row payloads, and the column type system.
package types

import (
	"bytes"
	"fmt"
	"time"
)

// Type is the declared type of a column.
type Type string

const (
	TypeInteger  Type = "INTEGER"
	TypeNumber   Type = "NUMBER"
	TypeString   Type = "STRING"
	TypeBoolean  Type = "BOOLEAN"
	TypeDateTime Type = "DATETIME"
	TypeBytes    Type = "BYTES"
)

// ParseType parses a type name from a schema document.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeInteger, TypeNumber, TypeString, TypeBoolean, TypeDateTime, TypeBytes:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

// CheckValue reports whether v is a legal payload value for a column of type t.
// nil is legal for every type; nullability is enforced at the schema layer.
// Integer values are carried as int64, numbers as float64, datetimes as
// time.Time, bytes as []byte.
func CheckValue(t Type, v interface{}) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeInteger:
		_, ok := v.(int64)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, int64:
			return true
		}
		return false
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeDateTime:
		_, ok := v.(time.Time)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	}
	return false
}

// Compare orders two payload values of the same column type.
// nil compares lowest. Returns -1, 0, or 1.
func Compare(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return compareInt64(av, bv)
		case float64:
			return compareFloat64(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return compareFloat64(av, bv)
		case int64:
			return compareFloat64(av, float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			if av < bv {
				return -1
			}
			if av > bv {
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av {
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			if av.Before(bv) {
				return -1
			}
			if av.After(bv) {
				return 1
			}
			return 0
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv)
		}
	}

	// Incomparable kinds fall back to their printed forms so ordering stays total.
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if as < bs {
		return -1
	}
	if as > bs {
		return 1
	}
	return 0
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ToFloat converts a numeric payload value to float64 for aggregation.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
