// Package index provides the in-memory index implementations behind the
// query engine: an ordered B+-tree multimap, a murmur3-bucketed hash map,
// and the per-table row-id identity index. All implementations share one
// capability contract consumed by the planner and the physical operators.
package index

import (
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/pkg/types"
)

// Index is the capability contract every index implements, regardless of
// physical shape.
type Index interface {
	// Name returns the table-qualified index name.
	Name() string

	// Add inserts a new association. On a unique index an existing key fails
	// with a CONSTRAINT error.
	Add(k key.Key, id types.RowID) error

	// Set replaces any existing association for k.
	Set(k key.Key, id types.RowID)

	// Get returns the row ids associated with k, in insertion order.
	// Single-row indices return zero or one id.
	Get(k key.Key) []types.RowID

	// GetRange returns row ids for keys inside r in ascending key order.
	// A nil range yields all associations.
	GetRange(r *key.Range) []types.RowID

	// Remove removes the given associations for k, or every association for
	// k when no ids are passed.
	Remove(k key.Key, ids ...types.RowID)

	// Cost returns a cheap cardinality estimate for r; the planner consumes
	// this directly. A nil range estimates the whole index.
	Cost(r *key.Range) int

	// ContainsKey reports whether k has at least one association.
	ContainsKey(k key.Key) bool

	// Clear removes every association.
	Clear()
}

func removeIDs(ids []types.RowID, drop []types.RowID) []types.RowID {
	if len(drop) == 0 {
		return ids[:0]
	}
	out := ids[:0]
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if id == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}
