package schema

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

// Builder assembles a Database programmatically. The YAML loader and
// generated schema bindings both drive this one path, so validation lives
// here only.
type Builder struct {
	name    string
	version int
	tables  []*tableBuilder
	err     error
}

type tableBuilder struct {
	name    string
	columns []*Column
	byName  map[string]*Column
	pkCols  []string
	indexes []indexSpec
	fks     []fkSpec
}

type indexSpec struct {
	name    string
	columns []string
	unique  bool
}

type fkSpec struct {
	name         string
	localColumn  string
	remoteTable  string
	remoteColumn string
}

// NewBuilder creates a schema builder for the named database.
func NewBuilder(name string, version int) *Builder {
	return &Builder{name: name, version: version}
}

// Table starts a new table declaration.
func (b *Builder) Table(name string) *TableBuilder {
	if b.findTable(name) != nil {
		b.fail(errors.NewSyntax("table %q declared twice", name))
	}
	tb := &tableBuilder{name: name, byName: make(map[string]*Column)}
	b.tables = append(b.tables, tb)
	return &TableBuilder{b: b, t: tb}
}

func (b *Builder) findTable(name string) *tableBuilder {
	for _, t := range b.tables {
		if t.name == name {
			return t
		}
	}
	return nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// TableBuilder declares columns and constraints for one table.
type TableBuilder struct {
	b *Builder
	t *tableBuilder
}

// Column declares a column. Declaration order is preserved.
func (tb *TableBuilder) Column(name string, typ types.Type) *TableBuilder {
	if _, ok := tb.t.byName[name]; ok {
		tb.b.fail(errors.NewSyntax("column %q.%q declared twice", tb.t.name, name))
		return tb
	}
	col := &Column{name: name, typ: typ, ordinal: len(tb.t.columns)}
	tb.t.columns = append(tb.t.columns, col)
	tb.t.byName[name] = col
	return tb
}

// Nullable marks the named columns nullable.
func (tb *TableBuilder) Nullable(names ...string) *TableBuilder {
	for _, name := range names {
		col, ok := tb.t.byName[name]
		if !ok {
			tb.b.fail(errors.NewSyntax("nullable references unknown column %q.%q", tb.t.name, name))
			continue
		}
		col.nullable = true
	}
	return tb
}

// PrimaryKey declares the table's primary key over the named columns.
func (tb *TableBuilder) PrimaryKey(names ...string) *TableBuilder {
	if tb.t.pkCols != nil {
		tb.b.fail(errors.NewSyntax("table %q declares two primary keys", tb.t.name))
		return tb
	}
	tb.t.pkCols = names
	return tb
}

// Index declares a non-unique secondary index.
func (tb *TableBuilder) Index(name string, columns ...string) *TableBuilder {
	tb.t.indexes = append(tb.t.indexes, indexSpec{name: name, columns: columns})
	return tb
}

// Unique declares a unique secondary index.
func (tb *TableBuilder) Unique(name string, columns ...string) *TableBuilder {
	tb.t.indexes = append(tb.t.indexes, indexSpec{name: name, columns: columns, unique: true})
	return tb
}

// ForeignKey declares a foreign-key constraint from a local column to a
// remote table's column.
func (tb *TableBuilder) ForeignKey(name, localColumn, remoteTable, remoteColumn string) *TableBuilder {
	tb.t.fks = append(tb.t.fks, fkSpec{
		name:         name,
		localColumn:  localColumn,
		remoteTable:  remoteTable,
		remoteColumn: remoteColumn,
	})
	return tb
}

// Build assembles and validates the immutable Database.
func (b *Builder) Build() (*Database, error) {
	if b.err != nil {
		return nil, b.err
	}

	db := &Database{
		name:    b.name,
		version: b.version,
		byName:  make(map[string]*Table),
	}

	for _, tspec := range b.tables {
		if len(tspec.columns) == 0 {
			return nil, errors.NewSyntax("table %q has no columns", tspec.name)
		}

		t := &Table{
			name:    tspec.name,
			columns: tspec.columns,
			byName:  tspec.byName,
		}
		for _, col := range t.columns {
			col.table = t
		}

		ordinal := 0
		if tspec.pkCols != nil {
			pk, err := t.buildIndex("#pk", tspec.pkCols, true, true, ordinal)
			if err != nil {
				return nil, err
			}
			for _, col := range pk.Columns {
				if col.nullable {
					return nil, errors.NewConstraint(
						"primary-key column %q.%q cannot be nullable", t.name, col.name)
				}
			}
			t.pk = pk
			t.indexes = append(t.indexes, pk)
			ordinal++
		}

		for _, spec := range tspec.indexes {
			idx, err := t.buildIndex(spec.name, spec.columns, spec.unique, false, ordinal)
			if err != nil {
				return nil, err
			}
			t.indexes = append(t.indexes, idx)
			ordinal++
		}

		for _, spec := range tspec.fks {
			local, ok := t.byName[spec.localColumn]
			if !ok {
				return nil, errors.NewSyntax(
					"foreign key %q references unknown column %q.%q",
					spec.name, t.name, spec.localColumn)
			}
			t.fks = append(t.fks, &ForeignKey{
				Name:         spec.name,
				Local:        local,
				RemoteTable:  spec.remoteTable,
				RemoteColumn: spec.remoteColumn,
			})
		}

		db.tables = append(db.tables, t)
		db.byName[t.name] = t
	}

	if err := db.Validate(); err != nil {
		return nil, err
	}
	return db, nil
}

func (t *Table) buildIndex(name string, columns []string, unique, primary bool, ordinal int) (*Index, error) {
	if len(columns) == 0 {
		return nil, errors.NewSyntax("index %q on %q has no columns", name, t.name)
	}
	idx := &Index{
		Name:       name,
		Unique:     unique,
		PrimaryKey: primary,
		Ordinal:    ordinal,
		table:      t,
	}
	for _, cname := range columns {
		col, ok := t.byName[cname]
		if !ok {
			return nil, errors.NewSyntax("index %q references unknown column %q.%q", name, t.name, cname)
		}
		idx.Columns = append(idx.Columns, col)
	}
	return idx, nil
}
