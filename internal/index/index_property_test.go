package index

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/pkg/types"
)

// TestProperty_IndexRoundTrip validates: for any sequence of Add(k, v)
// without uniqueness conflict, Get(k) contains v; after Remove(k, v) it does
// not. Checked against both physical shapes.
func TestProperty_IndexRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	roundTrip := func(mk func() Index) func([]int64) bool {
		return func(raw []int64) bool {
			idx := mk()
			for i, v := range raw {
				k := key.Single(v)
				if err := idx.Add(k, types.RowID(i)); err != nil {
					return false
				}
			}
			for i, v := range raw {
				if !contains(idx.Get(key.Single(v)), types.RowID(i)) {
					return false
				}
			}
			for i, v := range raw {
				k := key.Single(v)
				idx.Remove(k, types.RowID(i))
				if contains(idx.Get(k), types.RowID(i)) {
					return false
				}
			}
			return idx.Cost(nil) == 0
		}
	}

	values := gen.SliceOf(gen.Int64Range(-1000, 1000))
	properties.Property("ordered index round-trips", prop.ForAll(
		roundTrip(func() Index { return NewOrderedIndex("t.b", false) }), values))
	properties.Property("hash index round-trips", prop.ForAll(
		roundTrip(func() Index { return NewHashIndex("t.h", false) }), values))

	properties.TestingRun(t)
}

// TestProperty_RangeMonotonicity validates: GetRange returns keys in
// ascending order, and the concatenation of [lo, mid) and [mid, hi] equals
// [lo, hi].
func TestProperty_RangeMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("range scans are ordered and compose", prop.ForAll(
		func(raw []int64, a, b, c int64) bool {
			idx := NewOrderedIndex("t.b", false)
			for i, v := range raw {
				if err := idx.Add(key.Single(v), types.RowID(i)); err != nil {
					return false
				}
			}

			bounds := []int64{a, b, c}
			sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
			lo, mid, hi := key.Single(bounds[0]), key.Single(bounds[1]), key.Single(bounds[2])

			full := key.Bound(lo, hi, false, false)
			left := key.Bound(lo, mid, false, true)
			right := key.Bound(mid, hi, false, false)

			gotFull := idx.GetRange(&full)
			gotLeft := idx.GetRange(&left)
			gotRight := idx.GetRange(&right)

			if len(gotFull) != len(gotLeft)+len(gotRight) {
				return false
			}
			for i, id := range append(gotLeft, gotRight...) {
				if gotFull[i] != id {
					return false
				}
			}

			// Keys come back in ascending order: the mapped values were added
			// with ids tracking insertion, so re-derive keys and verify order.
			keys := make([]key.Key, len(gotFull))
			for i, id := range gotFull {
				keys[i] = key.Single(raw[id])
			}
			return sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] })
		},
		gen.SliceOf(gen.Int64Range(-100, 100)),
		gen.Int64Range(-100, 100),
		gen.Int64Range(-100, 100),
		gen.Int64Range(-100, 100),
	))

	properties.TestingRun(t)
}

func contains(ids []types.RowID, id types.RowID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
