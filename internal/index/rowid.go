package index

import (
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/pkg/types"
)

// RowIDIndex is the identity index every table carries: each row id maps to
// itself. It backs full table scans and serves as the primary access path
// for tables without a declared primary key. Physically it is the hash
// single-map keyed by the encoded row id.
type RowIDIndex struct {
	*HashIndex
}

// NewRowIDIndex creates the row-id index for a table.
func NewRowIDIndex(name string) *RowIDIndex {
	return &RowIDIndex{HashIndex: NewHashIndex(name, true)}
}

// AddRow registers a row id.
func (r *RowIDIndex) AddRow(id types.RowID) {
	r.Set(key.Single(id), id)
}

// RemoveRow drops a row id.
func (r *RowIDIndex) RemoveRow(id types.RowID) {
	r.Remove(key.Single(id))
}

// ContainsRow reports whether the row id is registered.
func (r *RowIDIndex) ContainsRow(id types.RowID) bool {
	return r.ContainsKey(key.Single(id))
}
