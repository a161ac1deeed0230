package plan

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/query/exec"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/schema"
)

// Planner lowers logical trees into physical operator trees.
type Planner struct {
	cs                CostSource
	hashJoinThreshold int
}

// NewPlanner creates a planner over the given cost source. The threshold
// caps hash-join build sides; beyond it joins stay nested-loop.
func NewPlanner(cs CostSource, hashJoinThreshold int) *Planner {
	return &Planner{cs: cs, hashJoinThreshold: hashJoinThreshold}
}

// Plan rewrites the logical tree and lowers it to physical operators.
func (p *Planner) Plan(root *Node) (exec.Operator, error) {
	return p.lower(Rewrite(root, p.cs))
}

func (p *Planner) lower(n *Node) (exec.Operator, error) {
	switch n.Kind {
	case KindEmpty:
		return exec.EmptyResult{}, nil

	case KindTableAccess:
		return &exec.FullTableScan{Table: n.Table}, nil

	case KindSelect:
		if n.Children[0].Kind == KindTableAccess {
			return p.accessPath(n.Children[0].Table, n.Pred), nil
		}
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Filter{Child: child, Pred: n.Pred}, nil

	case KindProject:
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Project{Child: child, Columns: n.Columns, Aggs: n.Aggs, Distinct: n.Distinct}, nil

	case KindJoin:
		return p.lowerJoin(n)

	case KindGroupBy:
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Aggregate{Child: child, GroupBy: n.Columns}, nil

	case KindAggregation:
		// Aggregation directly over GroupBy fuses into one grouped pass.
		if n.Children[0].Kind == KindGroupBy {
			gb := n.Children[0]
			child, err := p.lower(gb.Children[0])
			if err != nil {
				return nil, err
			}
			return &exec.Aggregate{Child: child, GroupBy: gb.Columns, Aggs: n.Aggs}, nil
		}
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Aggregate{Child: child, Aggs: n.Aggs}, nil

	case KindOrderBy:
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.OrderBy{Child: child, Keys: n.OrderKeys}, nil

	case KindLimit:
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Limit{Child: child, N: n.Count}, nil

	case KindSkip:
		child, err := p.lower(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &exec.Skip{Child: child, N: n.Count}, nil

	case KindUnion, KindIntersect, KindExcept:
		children := make([]exec.Operator, len(n.Children))
		for i, c := range n.Children {
			child, err := p.lower(c)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		kind := exec.SetUnion
		if n.Kind == KindIntersect {
			kind = exec.SetIntersect
		} else if n.Kind == KindExcept {
			kind = exec.SetExcept
		}
		return &exec.SetOp{Kind: kind, Children: children}, nil

	case KindInsertValues:
		return &exec.InsertValues{Table: n.Table, Payloads: n.Payloads, AllowReplace: n.AllowReplace}, nil

	case KindUpdate:
		return &exec.Update{Table: n.Table, Child: p.mutationScan(n.Table, n.Pred), Assignments: n.Assignments}, nil

	case KindDelete:
		return &exec.Delete{Table: n.Table, Child: p.mutationScan(n.Table, n.Pred)}, nil
	}

	return nil, errors.NewUnknown(nil, "unplannable node kind %d", n.Kind)
}

// accessPath substitutes TableAccess + Select with the cheapest access: a
// primary-key lookup, an index scan, or a full scan with a residual filter.
func (p *Planner) accessPath(t *schema.Table, filter pred.Predicate) exec.Operator {
	full := p.cs.TableRowCount(t)

	// The whole predicate collapses into one range on one column.
	if col, r, ok := pred.RangeFor(filter); ok {
		if idx, cost, found := cheapestIndex(col, &r, p.cs); found && cost <= full {
			return indexAccess(t, idx, r)
		}
	}

	// Otherwise use one range-expressible conjunct for access and keep the
	// rest as a residual filter.
	if and, ok := filter.(*pred.Combined); ok && and.IsAnd {
		for i, child := range and.Children {
			col, r, ok := pred.RangeFor(child)
			if !ok {
				continue
			}
			idx, cost, found := cheapestIndex(col, &r, p.cs)
			if !found || cost > full {
				continue
			}
			rest := make([]pred.Predicate, 0, len(and.Children)-1)
			rest = append(rest, and.Children[:i]...)
			rest = append(rest, and.Children[i+1:]...)
			return &exec.Filter{
				Child: indexAccess(t, idx, r),
				Pred:  pred.And(rest...),
			}
		}
	}

	return &exec.Filter{
		Child: &exec.FullTableScan{Table: t},
		Pred:  filter,
	}
}

// indexAccess picks between a primary-key lookup and a general index scan.
func indexAccess(t *schema.Table, idx *schema.Index, r key.Range) exec.Operator {
	if idx.PrimaryKey && isPointRange(r) {
		return &exec.PrimaryKeyLookup{Table: t, Key: r.Lower}
	}
	return &exec.IndexScan{Table: t, Index: idx, Range: r}
}

func isPointRange(r key.Range) bool {
	return r.HasLower && r.HasUpper && r.Lower == r.Upper &&
		!r.ExcludeLower && !r.ExcludeUpper
}

// lowerJoin emits a hash join for a single-pair equi-join whose smaller side
// fits the configured threshold, nested-loop otherwise.
func (p *Planner) lowerJoin(n *Node) (exec.Operator, error) {
	left, err := p.lower(n.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := p.lower(n.Children[1])
	if err != nil {
		return nil, err
	}

	if eq, ok := n.Pred.(*pred.JoinComparison); ok && eq.Op == pred.OpEq {
		smaller := estimate(n.Children[0], p.cs)
		if r := estimate(n.Children[1], p.cs); r < smaller {
			smaller = r
		}
		if smaller <= p.hashJoinThreshold {
			// Join reordering may have commuted the sides; the hash join reads
			// On.Left from the left child, so orient the comparison to match.
			if _, ok := tablesOf(n.Children[0])[eq.Left.Table().Name()]; !ok {
				eq = &pred.JoinComparison{Left: eq.Right, Right: eq.Left, Op: eq.Op}
			}
			return &exec.HashJoin{Left: left, Right: right, On: eq}, nil
		}
	}
	return &exec.NestedLoopJoin{Left: left, Right: right, Pred: n.Pred}, nil
}

// mutationScan builds the row-producing subtree of an update or delete.
func (p *Planner) mutationScan(t *schema.Table, filter pred.Predicate) exec.Operator {
	if filter == nil {
		return &exec.FullTableScan{Table: t}
	}
	return p.accessPath(t, filter)
}
