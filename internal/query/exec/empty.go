package exec

import "github.com/quern/quern/internal/relation"

// EmptyResult yields the shared empty relation. The rewriter lowers any
// subtree reducible to the empty relation into this.
type EmptyResult struct{}

// Execute returns the empty singleton.
func (EmptyResult) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	return relation.Empty(), nil
}

func (EmptyResult) String() string { return "empty" }
