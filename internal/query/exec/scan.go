package exec

import (
	"fmt"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
)

// FullTableScan reads every visible row of a table in row-id order.
type FullTableScan struct {
	Table *schema.Table
}

// Execute returns a single-table, non-prefixed relation.
func (s *FullTableScan) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	rows := ctx.Source.ScanRowIDs(s.Table)
	ctx.countScanned(len(rows))
	return relation.FromRows(rows, []string{s.Table.Name()}), nil
}

func (s *FullTableScan) String() string {
	return fmt.Sprintf("table_scan(%s)", s.Table.Name())
}

// IndexScan reads the rows whose index key falls inside Range, in ascending
// key order.
type IndexScan struct {
	Table *schema.Table
	Index *schema.Index
	Range key.Range
}

// Execute returns a single-table, non-prefixed relation.
func (s *IndexScan) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	ctx.countIndexLookup()
	rows := ctx.Source.ScanIndex(s.Index, &s.Range)
	ctx.countScanned(len(rows))
	return relation.FromRows(rows, []string{s.Table.Name()}), nil
}

func (s *IndexScan) String() string {
	return fmt.Sprintf("index_scan(%s)", s.Index.FullName())
}

// PrimaryKeyLookup probes the primary index for a single key.
type PrimaryKeyLookup struct {
	Table *schema.Table
	Key   key.Key
}

// Execute returns a relation of at most one row.
func (s *PrimaryKeyLookup) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	ctx.countIndexLookup()
	r := key.Only(s.Key)
	rows := ctx.Source.ScanIndex(s.Table.PrimaryKey(), &r)
	ctx.countScanned(len(rows))
	return relation.FromRows(rows, []string{s.Table.Name()}), nil
}

func (s *PrimaryKeyLookup) String() string {
	return fmt.Sprintf("pk_lookup(%s)", s.Table.Name())
}
