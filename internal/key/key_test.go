package key

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncode_IntegerOrdering(t *testing.T) {
	values := []int64{-1 << 62, -5, -1, 0, 1, 5, 1 << 62}
	for i := 1; i < len(values); i++ {
		a := Single(values[i-1])
		b := Single(values[i])
		assert.Less(t, string(a), string(b), "%d should sort before %d", values[i-1], values[i])
	}
}

func TestEncode_NumberOrdering(t *testing.T) {
	values := []float64{-1e18, -3.5, -0.0001, 0, 0.0001, 2.5, 1e18}
	for i := 1; i < len(values); i++ {
		a := Single(values[i-1])
		b := Single(values[i])
		assert.Less(t, string(a), string(b))
	}
}

func TestEncode_StringOrderingAndPrefix(t *testing.T) {
	assert.Less(t, string(Single("ab")), string(Single("abc")))
	assert.Less(t, string(Single("key-1")), string(Single("key-5")))
	assert.Less(t, string(Single("key-5")), string(Single("key0")))

	// Embedded escape bytes keep strict ordering.
	assert.Less(t, string(Single("a\x00b")), string(Single("a\x00c")))
	assert.Less(t, string(Single("a")), string(Single("a\x00")))
	assert.Less(t, string(Single("a\x00")), string(Single("a\x01")))
}

func TestEncode_DateTimeOrdering(t *testing.T) {
	early := time.Unix(1000, 0)
	late := time.Unix(2000, 0)
	assert.Less(t, string(Single(early)), string(Single(late)))
	assert.Equal(t, Single(early), Single(time.Unix(1000, 0)))
}

func TestEncode_CompositeLexicographic(t *testing.T) {
	// First column dominates.
	assert.Less(t, string(Encode("a", int64(9))), string(Encode("b", int64(0))))
	// Equal first column defers to the second.
	assert.Less(t, string(Encode("a", int64(1))), string(Encode("a", int64(2))))
	// A shorter composite is a strict prefix of a longer one.
	assert.Less(t, string(Encode("a")), string(Encode("a", int64(1))))
}

func TestEncode_EqualValuesEqualKeys(t *testing.T) {
	assert.Equal(t, Single(int64(42)), Single(int64(42)))
	assert.Equal(t, Encode("x", true), Encode("x", true))
	assert.NotEqual(t, Single(int64(42)), Single(float64(42)))
}

func TestRange_Contains(t *testing.T) {
	lo, hi := Single(int64(10)), Single(int64(20))

	all := All()
	assert.True(t, all.Contains(Single(int64(-999))))

	only := Only(lo)
	assert.True(t, only.Contains(lo))
	assert.False(t, only.Contains(hi))

	closed := Bound(lo, hi, false, false)
	assert.True(t, closed.Contains(lo))
	assert.True(t, closed.Contains(hi))
	assert.True(t, closed.Contains(Single(int64(15))))
	assert.False(t, closed.Contains(Single(int64(21))))

	open := Bound(lo, hi, true, true)
	assert.False(t, open.Contains(lo))
	assert.False(t, open.Contains(hi))
	assert.True(t, open.Contains(Single(int64(15))))

	lower := LowerBound(lo, true)
	assert.False(t, lower.Contains(lo))
	assert.True(t, lower.Contains(hi))

	upper := UpperBound(hi, false)
	assert.True(t, upper.Contains(lo))
	assert.True(t, upper.Contains(hi))
	assert.False(t, upper.Contains(Single(int64(21))))
}

func TestRange_IsEmpty(t *testing.T) {
	lo, hi := Single(int64(1)), Single(int64(2))
	assert.False(t, Bound(lo, hi, true, true).IsEmpty())
	assert.True(t, Bound(hi, lo, false, false).IsEmpty())
	assert.True(t, Bound(lo, lo, true, false).IsEmpty())
	assert.False(t, Only(lo).IsEmpty())
	assert.False(t, All().IsEmpty())
}

func TestRange_Intersect(t *testing.T) {
	k := func(v int64) Key { return Single(v) }

	a := Bound(k(0), k(10), false, false)
	b := Bound(k(5), k(20), false, false)
	got := a.Intersect(b)
	assert.Equal(t, Bound(k(5), k(10), false, false), got)

	// Open flag wins on equal bounds.
	c := Bound(k(0), k(10), false, true)
	d := Bound(k(0), k(10), true, false)
	got = c.Intersect(d)
	assert.True(t, got.ExcludeLower)
	assert.True(t, got.ExcludeUpper)

	// Intersection with All is identity.
	assert.Equal(t, a, a.Intersect(All()))
	assert.Equal(t, a, All().Intersect(a))

	// Disjoint ranges intersect to empty.
	e := Bound(k(0), k(3), false, false)
	f := Bound(k(5), k(9), false, false)
	assert.True(t, e.Intersect(f).IsEmpty())
}
