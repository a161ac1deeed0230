package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// OrderKey is one ORDER BY key with its direction.
type OrderKey struct {
	Col *schema.Column
	Dir Direction
}

// OrderBy stably sorts the child's entries by the declared key list with
// independent directions per key. NULLs compare lowest.
type OrderBy struct {
	Child Operator
	Keys  []OrderKey
}

// Execute sorts the child's relation.
func (o *OrderBy) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := o.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}

	entries := append([]*relation.Entry(nil), in.Entries()...)
	sort.SliceStable(entries, func(i, j int) bool {
		for _, k := range o.Keys {
			cmp := types.Compare(entries[i].Field(k.Col), entries[j].Field(k.Col))
			if cmp == 0 {
				continue
			}
			if k.Dir == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return relation.New(entries, in.Tables()), nil
}

func (o *OrderBy) String() string {
	parts := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		dir := "asc"
		if k.Dir == Desc {
			dir = "desc"
		}
		parts[i] = fmt.Sprintf("%s %s", k.Col.Name(), dir)
	}
	return fmt.Sprintf("order_by(%s)", strings.Join(parts, ", "))
}

// Skip drops the first N entries. It runs before Limit.
type Skip struct {
	Child Operator
	N     int
}

// Execute drops the prefix.
func (s *Skip) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := s.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	entries := in.Entries()
	if s.N >= len(entries) {
		return relation.New(nil, in.Tables()), nil
	}
	return relation.New(entries[s.N:], in.Tables()), nil
}

func (s *Skip) String() string { return fmt.Sprintf("skip(%d)", s.N) }

// Limit keeps at most N entries.
type Limit struct {
	Child Operator
	N     int
}

// Execute truncates the child's relation.
func (l *Limit) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := l.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	entries := in.Entries()
	if l.N < len(entries) {
		entries = entries[:l.N]
	}
	return relation.New(entries, in.Tables()), nil
}

func (l *Limit) String() string { return fmt.Sprintf("limit(%d)", l.N) }
