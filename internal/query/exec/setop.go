package exec

import (
	"github.com/quern/quern/internal/relation"
)

// SetOpKind selects the set operation.
type SetOpKind int

const (
	SetUnion SetOpKind = iota
	SetIntersect
	SetExcept
)

// SetOp combines child relations under table-set compatibility. Union and
// intersect follow the relation layer's entry-id semantics; except keeps the
// first child's entries absent from every other child.
type SetOp struct {
	Kind     SetOpKind
	Children []Operator
}

// Execute evaluates the children and combines.
func (s *SetOp) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	relations := make([]*relation.Relation, len(s.Children))
	for i, child := range s.Children {
		r, err := child.Execute(ctx)
		if err != nil {
			return nil, err
		}
		relations[i] = r
	}

	switch s.Kind {
	case SetUnion:
		return relation.Union(relations)
	case SetIntersect:
		return relation.Intersect(relations)
	default:
		return relation.Except(relations)
	}
}

func (s *SetOp) String() string {
	switch s.Kind {
	case SetUnion:
		return "union"
	case SetIntersect:
		return "intersect"
	default:
		return "except"
	}
}
