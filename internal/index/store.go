package index

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// Store holds every index of one database: per table a row-id index plus an
// ordered index for each declared index. Indices are not persisted; the
// store is rebuilt from table contents when the database opens.
type Store struct {
	schema *schema.Database
	rowIDs map[string]*RowIDIndex
	byName map[string]Index
}

// NewStore creates the index set declared by the schema, empty.
func NewStore(db *schema.Database) *Store {
	s := &Store{
		schema: db,
		rowIDs: make(map[string]*RowIDIndex),
		byName: make(map[string]Index),
	}
	for _, t := range db.Tables() {
		rid := NewRowIDIndex(t.RowIDIndexName())
		s.rowIDs[t.Name()] = rid
		s.byName[rid.Name()] = rid
		for _, idx := range t.Indexes() {
			ordered := NewOrderedIndex(idx.FullName(), idx.Unique)
			s.byName[idx.FullName()] = ordered
		}
	}
	return s
}

// Index returns the index with the given table-qualified name.
func (s *Store) Index(fullName string) (Index, error) {
	idx, ok := s.byName[fullName]
	if !ok {
		return nil, errors.NewNotFound("no index %q", fullName)
	}
	return idx, nil
}

// RowIDIndex returns the row-id index of the named table.
func (s *Store) RowIDIndex(table string) (*RowIDIndex, error) {
	idx, ok := s.rowIDs[table]
	if !ok {
		return nil, errors.NewNotFound("no table %q", table)
	}
	return idx, nil
}

// TableIndices returns the declared indices of a table in preference order:
// primary key first, then the secondaries in declaration order.
func (s *Store) TableIndices(t *schema.Table) []Index {
	out := make([]Index, 0, len(t.Indexes()))
	for _, meta := range t.Indexes() {
		out = append(out, s.byName[meta.FullName()])
	}
	return out
}

// KeyFor encodes the index key of a payload for the given declared index.
func KeyFor(idx *schema.Index, payload map[string]interface{}) key.Key {
	values := make([]interface{}, len(idx.Columns))
	for i, col := range idx.Columns {
		values[i] = payload[col.Name()]
	}
	return key.Encode(values...)
}

// AddRow indexes one row into the table's row-id index and every declared
// index. A CONSTRAINT failure leaves already-applied entries in place; the
// journal layer applies diffs only after validation, so this only surfaces
// during validation itself.
func (s *Store) AddRow(t *schema.Table, row *types.Row) error {
	rid := s.rowIDs[t.Name()]
	rid.AddRow(row.ID)
	for _, meta := range t.Indexes() {
		idx := s.byName[meta.FullName()]
		if err := idx.Add(KeyFor(meta, row.Payload), row.ID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRow drops one row from the table's row-id index and every declared
// index.
func (s *Store) RemoveRow(t *schema.Table, row *types.Row) {
	rid := s.rowIDs[t.Name()]
	rid.RemoveRow(row.ID)
	for _, meta := range t.Indexes() {
		idx := s.byName[meta.FullName()]
		idx.Remove(KeyFor(meta, row.Payload), row.ID)
	}
}

// BuildFromRows rebuilds a table's indices from scanned rows, used to warm
// indices on database open.
func (s *Store) BuildFromRows(t *schema.Table, rows []*types.Row) error {
	s.rowIDs[t.Name()].Clear()
	for _, meta := range t.Indexes() {
		s.byName[meta.FullName()].Clear()
	}
	for _, row := range rows {
		if err := s.AddRow(t, row); err != nil {
			return err
		}
	}
	return nil
}
