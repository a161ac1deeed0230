// Package exec provides the physical operators. Every operator materializes
// its output relation fully: the engine targets small-to-medium datasets and
// buys simple memory accounting with batched pull execution.
package exec

import (
	"context"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/observability"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// Source provides snapshot row access for leaf operators. The transaction
// runtime implements it by overlaying the journal on the cache, so scans
// observe the transaction's own writes.
type Source interface {
	// TableRows returns all visible rows of a table.
	TableRows(table *schema.Table) []*types.Row

	// ScanIndex returns the visible rows whose index key falls inside r, in
	// ascending key order. A nil range scans everything.
	ScanIndex(idx *schema.Index, r *key.Range) []*types.Row

	// ScanRowIDs returns the visible rows of a table in ascending row-id
	// order.
	ScanRowIDs(table *schema.Table) []*types.Row
}

// Mutator journals row mutations for the owning transaction.
type Mutator interface {
	// InsertRow validates and journals a row creation, assigning its row id.
	// With allowReplace an existing row under the same primary key is
	// replaced instead of failing.
	InsertRow(t *schema.Table, payload map[string]interface{}, allowReplace bool) (*types.Row, error)

	// UpdateRow journals a payload replacement for an existing row.
	UpdateRow(t *schema.Table, before *types.Row, payload map[string]interface{}) (*types.Row, error)

	// DeleteRow journals a row removal.
	DeleteRow(t *schema.Table, before *types.Row) error
}

// Context carries everything an operator needs to execute.
type Context struct {
	Ctx     context.Context
	Schema  *schema.Database
	Source  Source
	Mutator Mutator
	Stats   *observability.ExecStats

	// HashJoinThreshold caps the build-side size of a hash join; the planner
	// falls back to nested-loop beyond it.
	HashJoinThreshold int
}

// Operator is one node of a physical plan. Execution is pull-style but
// batched; Execute returns the operator's full output relation.
type Operator interface {
	Execute(ctx *Context) (*relation.Relation, error)
	String() string
}

func (c *Context) countOperator() {
	if c.Stats != nil {
		c.Stats.OperatorsExecuted++
	}
}

func (c *Context) countScanned(n int) {
	if c.Stats != nil {
		c.Stats.RowsScanned += int64(n)
	}
}

func (c *Context) countIndexLookup() {
	if c.Stats != nil {
		c.Stats.IndexLookups++
	}
}
