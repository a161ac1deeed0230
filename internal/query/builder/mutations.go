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

// InsertBuilder accumulates an INSERT query.
type InsertBuilder struct {
	runner       Runner
	err          error
	into         *schema.Table
	payloads     []map[string]interface{}
	valuesSet    bool
	allowReplace bool
}

// Insert starts a plain INSERT.
func Insert(runner Runner) *InsertBuilder {
	return &InsertBuilder{runner: runner}
}

// InsertOrReplace starts an INSERT that replaces rows on primary-key
// collision.
func InsertOrReplace(runner Runner) *InsertBuilder {
	return &InsertBuilder{runner: runner, allowReplace: true}
}

func (b *InsertBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Into names the target table. Calling it twice is a SYNTAX error.
func (b *InsertBuilder) Into(t *schema.Table) *InsertBuilder {
	if b.into != nil {
		b.fail(errors.NewSyntax("into() called twice"))
		return b
	}
	b.into = t
	return b
}

// Values sets the row payloads. Calling it twice is a SYNTAX error.
func (b *InsertBuilder) Values(payloads ...map[string]interface{}) *InsertBuilder {
	if b.valuesSet {
		b.fail(errors.NewSyntax("values() called twice"))
		return b
	}
	b.valuesSet = true
	b.payloads = payloads
	return b
}

// Build validates the clauses and lowers into a logical tree.
func (b *InsertBuilder) Build() (*plan.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.into == nil {
		return nil, errors.NewSyntax("insert requires into()")
	}
	if !b.valuesSet {
		return nil, errors.NewSyntax("insert requires values()")
	}
	if b.allowReplace && b.into.PrimaryKey() == nil {
		return nil, errors.NewConstraint(
			"insert-or-replace requires a primary key on table %q", b.into.Name())
	}
	return plan.InsertValues(b.into, b.payloads, b.allowReplace), nil
}

// Exec builds and runs the insert in its own transaction, returning the
// inserted rows.
func (b *InsertBuilder) Exec(ctx context.Context) (*relation.Relation, error) {
	return runSingle(ctx, b.runner, b)
}

// UpdateBuilder accumulates an UPDATE query.
type UpdateBuilder struct {
	runner      Runner
	err         error
	table       *schema.Table
	assignments []exec.Assignment
	where       pred.Predicate
}

// Update starts an UPDATE of the given table.
func Update(runner Runner, t *schema.Table) *UpdateBuilder {
	b := &UpdateBuilder{runner: runner, table: t}
	if t == nil {
		b.err = errors.NewSyntax("update requires a table")
	}
	return b
}

// Set appends one assignment; repeated calls accumulate.
func (b *UpdateBuilder) Set(col *schema.Column, v interface{}) *UpdateBuilder {
	if b.err != nil {
		return b
	}
	if col == nil {
		b.err = errors.NewSyntax("set() requires a column")
		return b
	}
	if b.table != nil && col.Table().Name() != b.table.Name() {
		b.err = errors.NewSyntax(
			"set() column %q does not belong to table %q", col.Name(), b.table.Name())
		return b
	}
	b.assignments = append(b.assignments, exec.Assignment{Col: col, Value: v})
	return b
}

// Where sets the filter predicate. Calling it twice is a SYNTAX error.
func (b *UpdateBuilder) Where(p pred.Predicate) *UpdateBuilder {
	if b.err != nil {
		return b
	}
	if b.where != nil {
		b.err = errors.NewSyntax("where() called twice")
		return b
	}
	b.where = p
	return b
}

// Build validates the clauses and lowers into a logical tree.
func (b *UpdateBuilder) Build() (*plan.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.assignments) == 0 {
		return nil, errors.NewSyntax("update requires at least one set()")
	}
	return plan.Update(b.table, b.assignments, b.where), nil
}

// Exec builds and runs the update in its own transaction, returning the
// updated rows.
func (b *UpdateBuilder) Exec(ctx context.Context) (*relation.Relation, error) {
	return runSingle(ctx, b.runner, b)
}

// DeleteBuilder accumulates a DELETE query.
type DeleteBuilder struct {
	runner Runner
	err    error
	from   *schema.Table
	where  pred.Predicate
}

// Delete starts a DELETE.
func Delete(runner Runner) *DeleteBuilder {
	return &DeleteBuilder{runner: runner}
}

// From names the target table. Calling it twice is a SYNTAX error.
func (b *DeleteBuilder) From(t *schema.Table) *DeleteBuilder {
	if b.err != nil {
		return b
	}
	if b.from != nil {
		b.err = errors.NewSyntax("from() called twice")
		return b
	}
	b.from = t
	return b
}

// Where sets the filter predicate; without it every row is deleted.
func (b *DeleteBuilder) Where(p pred.Predicate) *DeleteBuilder {
	if b.err != nil {
		return b
	}
	if b.where != nil {
		b.err = errors.NewSyntax("where() called twice")
		return b
	}
	b.where = p
	return b
}

// Build validates the clauses and lowers into a logical tree.
func (b *DeleteBuilder) Build() (*plan.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.from == nil {
		return nil, errors.NewSyntax("delete requires from()")
	}
	return plan.Delete(b.from, b.where), nil
}

// Exec builds and runs the delete in its own transaction, returning the
// deleted rows.
func (b *DeleteBuilder) Exec(ctx context.Context) (*relation.Relation, error) {
	return runSingle(ctx, b.runner, b)
}
