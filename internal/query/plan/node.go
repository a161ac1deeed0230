// Package plan provides the logical query plan: a tree of relational nodes
// produced by the query builder, rewritten by a fixed rule set, and lowered
// into a physical operator tree by cost-based access-path selection.
package plan

import (
	"fmt"
	"strings"

	"github.com/quern/quern/internal/query/exec"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/schema"
)

// Kind discriminates logical node kinds.
type Kind int

const (
	KindTableAccess Kind = iota
	KindSelect
	KindProject
	KindJoin
	KindGroupBy
	KindAggregation
	KindOrderBy
	KindLimit
	KindSkip
	KindUnion
	KindIntersect
	KindExcept
	KindInsertValues
	KindUpdate
	KindDelete
	KindEmpty
)

// Node is one logical plan node. Which fields are meaningful depends on
// Kind; rewrites are pure functions over these trees.
type Node struct {
	Kind     Kind
	Children []*Node

	// Table is the target of TableAccess, InsertValues, Update, and Delete.
	Table *schema.Table

	// Pred carries Select and Join predicates.
	Pred pred.Predicate

	// Columns carries Project and GroupBy column lists.
	Columns []*schema.Column

	// Aggs carries Aggregation specs.
	Aggs []exec.AggSpec

	// Distinct dedupes the projection.
	Distinct bool

	// OrderKeys carries OrderBy keys.
	OrderKeys []exec.OrderKey

	// Count carries Limit and Skip operands.
	Count int

	// Payloads carries InsertValues rows.
	Payloads []map[string]interface{}

	// AllowReplace makes InsertValues replace on primary-key collision.
	AllowReplace bool

	// Assignments carries Update SET clauses.
	Assignments []exec.Assignment
}

// Constructors used by the query builder.

func TableAccess(t *schema.Table) *Node {
	return &Node{Kind: KindTableAccess, Table: t}
}

func Select(p pred.Predicate, child *Node) *Node {
	return &Node{Kind: KindSelect, Pred: p, Children: []*Node{child}}
}

func Project(cols []*schema.Column, aggs []exec.AggSpec, distinct bool, child *Node) *Node {
	return &Node{Kind: KindProject, Columns: cols, Aggs: aggs, Distinct: distinct, Children: []*Node{child}}
}

func Join(p pred.Predicate, left, right *Node) *Node {
	return &Node{Kind: KindJoin, Pred: p, Children: []*Node{left, right}}
}

func GroupBy(cols []*schema.Column, child *Node) *Node {
	return &Node{Kind: KindGroupBy, Columns: cols, Children: []*Node{child}}
}

func Aggregation(aggs []exec.AggSpec, child *Node) *Node {
	return &Node{Kind: KindAggregation, Aggs: aggs, Children: []*Node{child}}
}

func OrderBy(keys []exec.OrderKey, child *Node) *Node {
	return &Node{Kind: KindOrderBy, OrderKeys: keys, Children: []*Node{child}}
}

func Limit(n int, child *Node) *Node {
	return &Node{Kind: KindLimit, Count: n, Children: []*Node{child}}
}

func Skip(n int, child *Node) *Node {
	return &Node{Kind: KindSkip, Count: n, Children: []*Node{child}}
}

func Union(children ...*Node) *Node {
	return &Node{Kind: KindUnion, Children: children}
}

func Intersect(children ...*Node) *Node {
	return &Node{Kind: KindIntersect, Children: children}
}

func Except(children ...*Node) *Node {
	return &Node{Kind: KindExcept, Children: children}
}

func InsertValues(t *schema.Table, payloads []map[string]interface{}, allowReplace bool) *Node {
	return &Node{Kind: KindInsertValues, Table: t, Payloads: payloads, AllowReplace: allowReplace}
}

func Update(t *schema.Table, assignments []exec.Assignment, p pred.Predicate) *Node {
	return &Node{Kind: KindUpdate, Table: t, Assignments: assignments, Pred: p}
}

func Delete(t *schema.Table, p pred.Predicate) *Node {
	return &Node{Kind: KindDelete, Table: t, Pred: p}
}

func emptyNode() *Node {
	return &Node{Kind: KindEmpty}
}

// clone copies the node with fresh child slice; rewrites never mutate their
// input.
func (n *Node) clone() *Node {
	cp := *n
	cp.Children = append([]*Node(nil), n.Children...)
	return &cp
}

// String renders the subtree for plan inspection.
func (n *Node) String() string {
	var sb strings.Builder
	n.render(&sb, 0)
	return sb.String()
}

func (n *Node) render(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	switch n.Kind {
	case KindTableAccess:
		fmt.Fprintf(sb, "table_access(%s)", n.Table.Name())
	case KindSelect:
		fmt.Fprintf(sb, "select(%s)", n.Pred)
	case KindProject:
		fmt.Fprintf(sb, "project(%d cols)", len(n.Columns)+len(n.Aggs))
	case KindJoin:
		if n.Pred == nil {
			sb.WriteString("cross_join")
		} else {
			fmt.Fprintf(sb, "join(%s)", n.Pred)
		}
	case KindGroupBy:
		fmt.Fprintf(sb, "group_by(%d cols)", len(n.Columns))
	case KindAggregation:
		fmt.Fprintf(sb, "aggregation(%d fns)", len(n.Aggs))
	case KindOrderBy:
		fmt.Fprintf(sb, "order_by(%d keys)", len(n.OrderKeys))
	case KindLimit:
		fmt.Fprintf(sb, "limit(%d)", n.Count)
	case KindSkip:
		fmt.Fprintf(sb, "skip(%d)", n.Count)
	case KindUnion:
		sb.WriteString("union")
	case KindIntersect:
		sb.WriteString("intersect")
	case KindExcept:
		sb.WriteString("except")
	case KindInsertValues:
		fmt.Fprintf(sb, "insert(%s)", n.Table.Name())
	case KindUpdate:
		fmt.Fprintf(sb, "update(%s)", n.Table.Name())
	case KindDelete:
		fmt.Fprintf(sb, "delete(%s)", n.Table.Name())
	case KindEmpty:
		sb.WriteString("empty")
	}
	sb.WriteString("\n")
	for _, c := range n.Children {
		c.render(sb, depth+1)
	}
}
