package key

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_IntegerKeyOrderPreservation validates that the integer key
// encoding is total-ordering-preserving: for any pair a < b, Encode(a)
// compares below Encode(b) as a byte string.
func TestProperty_IntegerKeyOrderPreservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer order is preserved", prop.ForAll(
		func(a, b int64) bool {
			ka, kb := Single(a), Single(b)
			switch {
			case a < b:
				return ka < kb
			case a > b:
				return ka > kb
			default:
				return ka == kb
			}
		},
		gen.Int64(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestProperty_StringKeyOrderPreservation validates the same property for
// strings, including strings containing the escape bytes 0x00 and 0x01.
func TestProperty_StringKeyOrderPreservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("string order is preserved", prop.ForAll(
		func(a, b string) bool {
			ka, kb := Single(a), Single(b)
			switch {
			case a < b:
				return ka < kb
			case a > b:
				return ka > kb
			default:
				return ka == kb
			}
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestProperty_CompositeKeyOrderPreservation validates lexicographic ordering
// of two-column composite keys.
func TestProperty_CompositeKeyOrderPreservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("composite order is lexicographic", prop.ForAll(
		func(a1 string, a2 int64, b1 string, b2 int64) bool {
			ka := Encode(a1, a2)
			kb := Encode(b1, b2)
			switch {
			case a1 < b1, a1 == b1 && a2 < b2:
				return ka < kb
			case a1 == b1 && a2 == b2:
				return ka == kb
			default:
				return ka > kb
			}
		},
		gen.AnyString(),
		gen.Int64(),
		gen.AnyString(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
