package exec

import (
	"fmt"

	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// InsertValues journals one row creation per payload and returns the
// inserted rows as a relation.
type InsertValues struct {
	Table        *schema.Table
	Payloads     []map[string]interface{}
	AllowReplace bool
}

// Execute validates and journals the inserts in order.
func (i *InsertValues) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	rows := make([]*types.Row, 0, len(i.Payloads))
	for _, payload := range i.Payloads {
		row, err := ctx.Mutator.InsertRow(i.Table, payload, i.AllowReplace)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return relation.FromRows(rows, []string{i.Table.Name()}), nil
}

func (i *InsertValues) String() string {
	return fmt.Sprintf("insert(%s, %d rows)", i.Table.Name(), len(i.Payloads))
}

// Assignment is one SET clause of an update.
type Assignment struct {
	Col   *schema.Column
	Value interface{}
}

// Update journals a payload replacement for every row the child produces.
type Update struct {
	Table       *schema.Table
	Child       Operator
	Assignments []Assignment
}

// Execute applies the assignments to each matching row.
func (u *Update) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := u.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]*types.Row, 0, in.Len())
	for _, e := range in.Entries() {
		payload := make(map[string]interface{}, len(e.Row.Payload))
		for k, v := range e.Row.Payload {
			payload[k] = v
		}
		for _, a := range u.Assignments {
			payload[a.Col.Name()] = a.Value
		}
		updated, err := ctx.Mutator.UpdateRow(u.Table, e.Row, payload)
		if err != nil {
			return nil, err
		}
		rows = append(rows, updated)
	}
	return relation.FromRows(rows, []string{u.Table.Name()}), nil
}

func (u *Update) String() string {
	return fmt.Sprintf("update(%s, %d assignments)", u.Table.Name(), len(u.Assignments))
}

// Delete journals a removal for every row the child produces.
type Delete struct {
	Table *schema.Table
	Child Operator
}

// Execute deletes each matching row.
func (d *Delete) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := d.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]*types.Row, 0, in.Len())
	for _, e := range in.Entries() {
		if err := ctx.Mutator.DeleteRow(d.Table, e.Row); err != nil {
			return nil, err
		}
		rows = append(rows, e.Row)
	}
	return relation.FromRows(rows, []string{d.Table.Name()}), nil
}

func (d *Delete) String() string {
	return fmt.Sprintf("delete(%s)", d.Table.Name())
}
