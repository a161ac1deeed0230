package exec

import (
	"fmt"

	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/relation"
)

// Filter retains the entries satisfying its predicate.
type Filter struct {
	Child Operator
	Pred  pred.Predicate
}

// Execute filters the child's relation.
func (f *Filter) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := f.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	var out []*relation.Entry
	for _, e := range in.Entries() {
		if f.Pred.Eval(e) {
			out = append(out, e)
		}
	}
	return relation.New(out, in.Tables()), nil
}

func (f *Filter) String() string {
	return fmt.Sprintf("filter(%s)", f.Pred)
}
