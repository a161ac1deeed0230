package plan

import (
	"sort"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/schema"
)

// CostSource supplies the cardinality estimates the rewriter and the
// physical planner consume. The database implements it over the committed
// index store.
type CostSource interface {
	// IndexCost estimates the number of rows an index yields for a range.
	IndexCost(idx *schema.Index, r *key.Range) int

	// TableRowCount returns the current row count of a table.
	TableRowCount(t *schema.Table) int
}

// Rewrite applies the logical rewrite rules in their fixed order. Each rule
// is idempotent; the composition is too. Access-path substitution happens at
// physical planning, over the rewritten tree.
func Rewrite(n *Node, cs CostSource) *Node {
	n = pushDownSelects(n)
	n = combineSelects(n)
	n = combineProjects(n)
	n = reorderJoins(n, cs)
	n = eliminateEmpty(n)
	return n
}

// pushDownSelects moves Select below a Project without aggregates or
// DISTINCT, and below a join when the predicate's free columns come from one
// side.
func pushDownSelects(n *Node) *Node {
	n = rewriteChildren(n, pushDownSelects)
	if n.Kind != KindSelect {
		return n
	}
	child := n.Children[0]

	switch child.Kind {
	case KindProject:
		// Select(Project(x)) => Project(Select(x)); predicates reference
		// schema columns, which exist before the projection reshapes rows.
		if len(child.Aggs) > 0 || child.Distinct {
			// A predicate over an aggregated or deduped projection filters
			// results, not source rows; it must stay above.
			return n
		}
		pushed := pushDownSelects(Select(n.Pred, child.Children[0]))
		out := child.clone()
		out.Children[0] = pushed
		return out

	case KindJoin:
		predTables := pred.TableSet(n.Pred)
		left, right := child.Children[0], child.Children[1]
		if subset(predTables, tablesOf(left)) {
			out := child.clone()
			out.Children[0] = pushDownSelects(Select(n.Pred, left))
			return out
		}
		if subset(predTables, tablesOf(right)) {
			out := child.clone()
			out.Children[1] = pushDownSelects(Select(n.Pred, right))
			return out
		}
	}
	return n
}

// combineSelects merges stacked Select nodes into one conjunction.
func combineSelects(n *Node) *Node {
	n = rewriteChildren(n, combineSelects)
	if n.Kind == KindSelect && n.Children[0].Kind == KindSelect {
		inner := n.Children[0]
		return Select(pred.And(n.Pred, inner.Pred), inner.Children[0])
	}
	return n
}

// combineProjects composes stacked Project nodes; the outer projection
// decides the final shape.
func combineProjects(n *Node) *Node {
	n = rewriteChildren(n, combineProjects)
	if n.Kind == KindProject && n.Children[0].Kind == KindProject {
		inner := n.Children[0]
		if len(inner.Aggs) == 0 && !inner.Distinct {
			out := n.clone()
			out.Children[0] = inner.Children[0]
			return out
		}
	}
	return n
}

// reorderJoins rebuilds chains of inner joins left-deep, greedily taking the
// smallest estimated cardinality first. Join sides carry table-keyed
// payloads, so commuting sides never changes attribute resolution.
func reorderJoins(n *Node, cs CostSource) *Node {
	n = rewriteChildren(n, func(c *Node) *Node { return reorderJoins(c, cs) })
	if n.Kind != KindJoin {
		return n
	}

	leaves, preds := flattenJoins(n)
	if len(leaves) < 2 {
		return n
	}

	// Greedy left-deep: start from the smallest leaf, then repeatedly take
	// the smallest leaf connected to what is already joined; fall back to
	// the smallest remaining when nothing connects.
	remaining := append([]*Node(nil), leaves...)
	sort.SliceStable(remaining, func(i, j int) bool {
		return estimate(remaining[i], cs) < estimate(remaining[j], cs)
	})

	acc := remaining[0]
	accTables := tablesOf(acc)
	remaining = remaining[1:]
	attached := make([]bool, len(preds))

	for len(remaining) > 0 {
		next := -1
		for i, cand := range remaining {
			if connects(preds, attached, accTables, tablesOf(cand)) {
				next = i
				break
			}
		}
		if next < 0 {
			next = 0
		}
		cand := remaining[next]
		remaining = append(remaining[:next], remaining[next+1:]...)

		union := unionSets(accTables, tablesOf(cand))
		var joinPreds []pred.Predicate
		for i, p := range preds {
			if !attached[i] && subset(pred.TableSet(p), union) {
				attached[i] = true
				joinPreds = append(joinPreds, p)
			}
		}
		var jp pred.Predicate
		if len(joinPreds) > 0 {
			jp = pred.And(joinPreds...)
		}
		acc = Join(jp, acc, cand)
		accTables = union
	}

	// Any predicate that never connected applies above the final join.
	for i, p := range preds {
		if !attached[i] {
			acc = Select(p, acc)
		}
	}
	return acc
}

// flattenJoins collects the leaf relations and predicates of a maximal
// inner-join subtree.
func flattenJoins(n *Node) ([]*Node, []pred.Predicate) {
	if n.Kind != KindJoin {
		return []*Node{n}, nil
	}
	leftLeaves, leftPreds := flattenJoins(n.Children[0])
	rightLeaves, rightPreds := flattenJoins(n.Children[1])
	leaves := append(leftLeaves, rightLeaves...)
	preds := append(leftPreds, rightPreds...)
	if n.Pred != nil {
		preds = append(preds, conjuncts(n.Pred)...)
	}
	return leaves, preds
}

// conjuncts splits a top-level conjunction.
func conjuncts(p pred.Predicate) []pred.Predicate {
	if c, ok := p.(*pred.Combined); ok && c.IsAnd {
		var out []pred.Predicate
		for _, child := range c.Children {
			out = append(out, conjuncts(child)...)
		}
		return out
	}
	return []pred.Predicate{p}
}

// eliminateEmpty collapses operators whose inputs are reducible to the empty
// relation. Scalar aggregations are exempt: they yield one row even over
// empty input.
func eliminateEmpty(n *Node) *Node {
	n = rewriteChildren(n, eliminateEmpty)

	switch n.Kind {
	case KindInsertValues:
		if len(n.Payloads) == 0 {
			return emptyNode()
		}
	case KindLimit:
		if n.Count == 0 || n.Children[0].Kind == KindEmpty {
			return emptyNode()
		}
	case KindSelect, KindProject, KindOrderBy, KindSkip:
		if n.Children[0].Kind == KindEmpty {
			return emptyNode()
		}
	case KindJoin:
		if n.Children[0].Kind == KindEmpty || n.Children[1].Kind == KindEmpty {
			return emptyNode()
		}
	case KindUnion:
		var kept []*Node
		for _, c := range n.Children {
			if c.Kind != KindEmpty {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			return emptyNode()
		}
		out := n.clone()
		out.Children = kept
		return out
	case KindIntersect:
		for _, c := range n.Children {
			if c.Kind == KindEmpty {
				return emptyNode()
			}
		}
	case KindExcept:
		if len(n.Children) > 0 && n.Children[0].Kind == KindEmpty {
			return emptyNode()
		}
	}
	return n
}

// estimate computes the cardinality estimate driving join order and the
// hash-join eligibility check.
func estimate(n *Node, cs CostSource) int {
	switch n.Kind {
	case KindEmpty:
		return 0
	case KindTableAccess:
		return cs.TableRowCount(n.Table)
	case KindSelect:
		child := estimate(n.Children[0], cs)
		if col, r, ok := pred.RangeFor(n.Pred); ok {
			if _, best, found := cheapestIndex(col, &r, cs); found && best < child {
				return best
			}
		}
		return child
	case KindJoin:
		l := estimate(n.Children[0], cs)
		r := estimate(n.Children[1], cs)
		if l > 0 && r > (1<<31)/l {
			return 1 << 31
		}
		return l * r
	case KindLimit:
		child := estimate(n.Children[0], cs)
		if n.Count < child {
			return n.Count
		}
		return child
	case KindUnion:
		total := 0
		for _, c := range n.Children {
			total += estimate(c, cs)
		}
		return total
	case KindIntersect, KindExcept:
		if len(n.Children) > 0 {
			return estimate(n.Children[0], cs)
		}
		return 0
	}
	if len(n.Children) > 0 {
		return estimate(n.Children[0], cs)
	}
	return 0
}

// cheapestIndex returns the cheapest index usable for the column and its
// cost. Candidates arrive ordered primary > unique > non-unique, then by
// declaration, so a strict comparison implements the tie-break.
func cheapestIndex(col *schema.Column, r *key.Range, cs CostSource) (*schema.Index, int, bool) {
	var best *schema.Index
	bestCost := 0
	for _, idx := range col.Table().IndexesOn(col) {
		// Only a leading single-column match is range-usable.
		if len(idx.Columns) != 1 {
			continue
		}
		c := cs.IndexCost(idx, r)
		if best == nil || c < bestCost {
			best, bestCost = idx, c
		}
	}
	return best, bestCost, best != nil
}

func rewriteChildren(n *Node, fn func(*Node) *Node) *Node {
	if len(n.Children) == 0 {
		return n
	}
	out := n.clone()
	for i, c := range out.Children {
		out.Children[i] = fn(c)
	}
	return out
}

func tablesOf(n *Node) map[string]struct{} {
	set := make(map[string]struct{})
	collectTables(n, set)
	return set
}

func collectTables(n *Node, set map[string]struct{}) {
	if n.Table != nil {
		set[n.Table.Name()] = struct{}{}
	}
	for _, c := range n.Children {
		collectTables(c, set)
	}
}

func subset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func unionSets(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func connects(preds []pred.Predicate, attached []bool, accTables, candTables map[string]struct{}) bool {
	union := unionSets(accTables, candTables)
	for i, p := range preds {
		if attached[i] {
			continue
		}
		pt := pred.TableSet(p)
		if subset(pt, union) && !subset(pt, accTables) && !subset(pt, candTables) {
			return true
		}
	}
	return false
}
