// Package builder provides the fluent query surface: typed SELECT, INSERT,
// UPDATE, and DELETE builders that check call legality as they are invoked
// and lower into logical plan trees.
package builder

import (
	"context"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/query/exec"
	"github.com/quern/quern/internal/query/plan"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
)

// Runner executes logical plans inside a fresh transaction. The database
// implements it; builders only hold it so Exec can run one-shot queries.
type Runner interface {
	Run(ctx context.Context, queries []*plan.Node) ([]*relation.Relation, error)
}

// Query is the common surface of the four builders.
type Query interface {
	// Build validates the accumulated clauses and lowers into a logical
	// plan node.
	Build() (*plan.Node, error)
}

// SelectBuilder accumulates a SELECT query.
type SelectBuilder struct {
	runner   Runner
	err      error
	cols     []*schema.Column
	aggs     []exec.AggSpec
	distinct bool
	from     *schema.Table
	joins    []joinClause
	where    pred.Predicate
	groupBy  []*schema.Column
	orderBy  []exec.OrderKey
	limit    *int
	skip     *int
}

type joinClause struct {
	table *schema.Table
	on    pred.Predicate
}

// Select starts a SELECT over the given projection items: columns
// (*schema.Column) and aggregations (exec.AggSpec). An empty list selects
// everything.
func Select(runner Runner, items ...interface{}) *SelectBuilder {
	b := &SelectBuilder{runner: runner}
	for _, item := range items {
		switch v := item.(type) {
		case *schema.Column:
			b.cols = append(b.cols, v)
		case exec.AggSpec:
			b.aggs = append(b.aggs, v)
		default:
			b.fail(errors.NewSyntax("select accepts columns and aggregations, got %T", item))
		}
	}
	return b
}

func (b *SelectBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Distinct dedupes the projected rows.
func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.distinct = true
	return b
}

// From names the root table. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) From(t *schema.Table) *SelectBuilder {
	if b.from != nil {
		b.fail(errors.NewSyntax("from() called twice"))
		return b
	}
	b.from = t
	return b
}

// InnerJoin adds an inner join against another table.
func (b *SelectBuilder) InnerJoin(t *schema.Table, on pred.Predicate) *SelectBuilder {
	if t == nil || on == nil {
		b.fail(errors.NewSyntax("innerJoin() requires a table and a predicate"))
		return b
	}
	b.joins = append(b.joins, joinClause{table: t, on: on})
	return b
}

// Where sets the filter predicate. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) Where(p pred.Predicate) *SelectBuilder {
	if b.where != nil {
		b.fail(errors.NewSyntax("where() called twice"))
		return b
	}
	b.where = p
	return b
}

// GroupBy sets the grouping columns.
func (b *SelectBuilder) GroupBy(cols ...*schema.Column) *SelectBuilder {
	if b.groupBy != nil {
		b.fail(errors.NewSyntax("groupBy() called twice"))
		return b
	}
	b.groupBy = cols
	return b
}

// OrderBy appends one ordering key; repeated calls build the key list.
func (b *SelectBuilder) OrderBy(col *schema.Column, dir exec.Direction) *SelectBuilder {
	b.orderBy = append(b.orderBy, exec.OrderKey{Col: col, Dir: dir})
	return b
}

// Limit caps the result size. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	if b.limit != nil {
		b.fail(errors.NewSyntax("limit() called twice"))
		return b
	}
	if n < 0 {
		b.fail(errors.NewSyntax("limit() requires a non-negative count"))
		return b
	}
	b.limit = &n
	return b
}

// Skip drops a result prefix. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) Skip(n int) *SelectBuilder {
	if b.skip != nil {
		b.fail(errors.NewSyntax("skip() called twice"))
		return b
	}
	if n < 0 {
		b.fail(errors.NewSyntax("skip() requires a non-negative count"))
		return b
	}
	b.skip = &n
	return b
}

// Build lowers the accumulated clauses into a logical tree.
func (b *SelectBuilder) Build() (*plan.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.from == nil {
		return nil, errors.NewSyntax("select requires from()")
	}
	if err := b.checkColumns(); err != nil {
		return nil, err
	}

	node := plan.TableAccess(b.from)
	for _, j := range b.joins {
		node = plan.Join(j.on, node, plan.TableAccess(j.table))
	}
	if b.where != nil {
		node = plan.Select(b.where, node)
	}
	if len(b.aggs) > 0 {
		if len(b.groupBy) > 0 {
			node = plan.Aggregation(b.aggs, plan.GroupBy(b.groupBy, node))
		} else {
			node = plan.Aggregation(b.aggs, node)
		}
	} else if len(b.groupBy) > 0 {
		node = plan.GroupBy(b.groupBy, node)
	}
	if len(b.orderBy) > 0 {
		node = plan.OrderBy(b.orderBy, node)
	}
	if b.skip != nil {
		node = plan.Skip(*b.skip, node)
	}
	if b.limit != nil {
		node = plan.Limit(*b.limit, node)
	}
	if len(b.cols) > 0 || len(b.aggs) > 0 || b.distinct {
		node = plan.Project(b.cols, b.aggs, b.distinct, node)
	}
	return node, nil
}

// checkColumns rejects projections and orderings over tables the query does
// not read.
func (b *SelectBuilder) checkColumns() error {
	scope := map[string]struct{}{b.from.Name(): {}}
	for _, j := range b.joins {
		scope[j.table.Name()] = struct{}{}
	}
	check := func(col *schema.Column) error {
		if _, ok := scope[col.Table().Name()]; !ok {
			return errors.NewSyntax(
				"column %q.%q is not part of the query scope",
				col.Table().Name(), col.Name())
		}
		return nil
	}
	for _, col := range b.cols {
		if err := check(col); err != nil {
			return err
		}
	}
	for _, k := range b.orderBy {
		if err := check(k.Col); err != nil {
			return err
		}
	}
	for _, col := range b.groupBy {
		if err := check(col); err != nil {
			return err
		}
	}
	return nil
}

// Exec builds and runs the query in its own transaction.
func (b *SelectBuilder) Exec(ctx context.Context) (*relation.Relation, error) {
	return runSingle(ctx, b.runner, b)
}

func runSingle(ctx context.Context, runner Runner, q Query) (*relation.Relation, error) {
	node, err := q.Build()
	if err != nil {
		return nil, err
	}
	results, err := runner.Run(ctx, []*plan.Node{node})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}
