// Package schema provides the immutable database schema model: tables,
// columns, indices, and constraints, plus a loader for the declarative YAML
// schema document.
package schema

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

// Column describes one table column.
type Column struct {
	name     string
	typ      types.Type
	nullable bool
	alias    string
	table    *Table
	ordinal  int
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the declared column type.
func (c *Column) Type() types.Type { return c.typ }

// Nullable reports whether the column accepts NULL.
func (c *Column) Nullable() bool { return c.nullable }

// Alias returns the projection alias, or "" when none is set.
func (c *Column) Alias() string { return c.alias }

// Table returns the parent table.
func (c *Column) Table() *Table { return c.table }

// Ordinal returns the column's declaration position.
func (c *Column) Ordinal() int { return c.ordinal }

// As returns a copy of the column carrying a projection alias. Alias reads
// short-circuit to a flat payload slot, bypassing prefix resolution.
func (c *Column) As(alias string) *Column {
	cp := *c
	cp.alias = alias
	return &cp
}

// Index describes a declared index, including the primary key.
type Index struct {
	// Name is the index name, unique within its table.
	Name string

	// Columns are the indexed columns in key order.
	Columns []*Column

	// Unique enforces at most one row per key.
	Unique bool

	// PrimaryKey marks the table's primary index.
	PrimaryKey bool

	// Ordinal is the index's declaration position, used to break cost ties.
	Ordinal int

	table *Table
}

// Table returns the parent table.
func (i *Index) Table() *Table { return i.table }

// FullName returns the table-qualified index name.
func (i *Index) FullName() string { return i.table.name + "." + i.Name }

// ColumnNames returns the indexed column names in key order.
func (i *Index) ColumnNames() []string {
	names := make([]string, len(i.Columns))
	for j, c := range i.Columns {
		names[j] = c.name
	}
	return names
}

// ForeignKey describes a foreign-key constraint from a local column to a
// column of a remote table. The remote table is referenced by name and
// resolved at validation time, since foreign keys may form cycles.
type ForeignKey struct {
	// Name is the constraint name.
	Name string

	// Local is the referencing column.
	Local *Column

	// RemoteTable and RemoteColumn name the referenced column.
	RemoteTable  string
	RemoteColumn string
}

// Table describes one table: ordered columns, primary key, secondary
// indices, and foreign keys. Immutable after the database is opened.
type Table struct {
	name    string
	columns []*Column
	byName  map[string]*Column
	pk      *Index
	indexes []*Index
	fks     []*ForeignKey
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.columns }

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	c, ok := t.byName[name]
	if !ok {
		return nil, errors.NewNotFound("table %q has no column %q", t.name, name)
	}
	return c, nil
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// PrimaryKey returns the primary index, or nil when the table has none.
func (t *Table) PrimaryKey() *Index { return t.pk }

// Indexes returns all declared indices. The primary key, when present, is
// first; the rest follow in declaration order.
func (t *Table) Indexes() []*Index { return t.indexes }

// Index returns the named index.
func (t *Table) Index(name string) (*Index, error) {
	for _, idx := range t.indexes {
		if idx.Name == name {
			return idx, nil
		}
	}
	return nil, errors.NewNotFound("table %q has no index %q", t.name, name)
}

// IndexesOn returns the indices whose leading column is the given column,
// ordered primary first, then unique, then by declaration order. This is the
// candidate order the planner uses to break cost ties.
func (t *Table) IndexesOn(col *Column) []*Index {
	var out []*Index
	for _, idx := range t.indexes {
		if idx.Columns[0].name == col.name {
			out = append(out, idx)
		}
	}
	sortIndexesByPreference(out)
	return out
}

// ForeignKeys returns the table's foreign-key constraints.
func (t *Table) ForeignKeys() []*ForeignKey { return t.fks }

// RowIDIndexName names the implicit row-id identity index that serves as the
// primary access path for tables without a declared primary key.
func (t *Table) RowIDIndexName() string { return t.name + ".#" }

func sortIndexesByPreference(indexes []*Index) {
	// Insertion sort keeps this allocation-free; index lists are tiny.
	for i := 1; i < len(indexes); i++ {
		for j := i; j > 0 && lessPreferred(indexes[j-1], indexes[j]); j-- {
			indexes[j-1], indexes[j] = indexes[j], indexes[j-1]
		}
	}
}

func lessPreferred(a, b *Index) bool {
	ar, br := preferenceRank(a), preferenceRank(b)
	if ar != br {
		return ar > br
	}
	return a.Ordinal > b.Ordinal
}

func preferenceRank(i *Index) int {
	switch {
	case i.PrimaryKey:
		return 0
	case i.Unique:
		return 1
	default:
		return 2
	}
}

// Database is the root schema object: a named, versioned set of tables.
type Database struct {
	name    string
	version int
	tables  []*Table
	byName  map[string]*Table
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Version returns the schema version.
func (d *Database) Version() int { return d.version }

// Tables returns the tables in declaration order.
func (d *Database) Tables() []*Table { return d.tables }

// Table returns the named table.
func (d *Database) Table(name string) (*Table, error) {
	t, ok := d.byName[name]
	if !ok {
		return nil, errors.NewNotFound("schema has no table %q", name)
	}
	return t, nil
}

// HasTable reports whether the schema declares the named table.
func (d *Database) HasTable(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Validate checks cross-table integrity: every foreign key must reference an
// existing table and column of a compatible type.
func (d *Database) Validate() error {
	for _, t := range d.tables {
		for _, fk := range t.fks {
			remote, ok := d.byName[fk.RemoteTable]
			if !ok {
				return errors.NewSyntax(
					"foreign key %q on %q references unknown table %q",
					fk.Name, t.name, fk.RemoteTable)
			}
			rc, ok := remote.byName[fk.RemoteColumn]
			if !ok {
				return errors.NewSyntax(
					"foreign key %q on %q references unknown column %q.%q",
					fk.Name, t.name, fk.RemoteTable, fk.RemoteColumn)
			}
			if rc.typ != fk.Local.typ {
				return errors.NewType(
					"foreign key %q on %q: %q is %s but %q.%q is %s",
					fk.Name, t.name, fk.Local.name, fk.Local.typ,
					fk.RemoteTable, fk.RemoteColumn, rc.typ)
			}
		}
	}
	return nil
}

// CheckRow validates a payload against the table's column types and
// nullability. Unknown payload keys are rejected.
func (t *Table) CheckRow(payload map[string]interface{}) error {
	for name, v := range payload {
		col, ok := t.byName[name]
		if !ok {
			return errors.NewSyntax("table %q has no column %q", t.name, name)
		}
		if v == nil {
			if !col.nullable {
				return errors.NewConstraint("column %q.%q is not nullable", t.name, name)
			}
			continue
		}
		if !types.CheckValue(col.typ, v) {
			return errors.NewType("value %v is not a legal %s for %q.%q", v, col.typ, t.name, name)
		}
	}
	for _, col := range t.columns {
		if _, ok := payload[col.name]; !ok && !col.nullable {
			return errors.NewConstraint("missing value for non-nullable column %q.%q", t.name, col.name)
		}
	}
	return nil
}
