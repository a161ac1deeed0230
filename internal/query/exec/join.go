package exec

import (
	"fmt"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/relation"
)

// NestedLoopJoin is the default join: every left entry is combined with
// every right entry and the predicate keeps the matches. A nil predicate
// yields the cross product. Output is prefix-applied.
type NestedLoopJoin struct {
	Left  Operator
	Right Operator
	Pred  pred.Predicate
}

// Execute materializes both sides and combines.
func (j *NestedLoopJoin) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	left, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	right, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}

	tables := append(append([]string(nil), left.Tables()...), right.Tables()...)
	var out []*relation.Entry
	for _, le := range left.Entries() {
		for _, re := range right.Entries() {
			combined := relation.CombineEntries(le, left.Tables(), re, right.Tables())
			if j.Pred == nil || j.Pred.Eval(combined) {
				out = append(out, combined)
			}
		}
	}
	return relation.New(out, tables), nil
}

func (j *NestedLoopJoin) String() string {
	if j.Pred == nil {
		return "cross_join"
	}
	return fmt.Sprintf("nested_loop_join(%s)", j.Pred)
}

// HashJoin handles single-column equi-joins: the smaller side is built into
// a hash table keyed by the join column, the larger side probes. The planner
// selects it only when the predicate is a conjunction of equi-joins on one
// column pair per side and the build side fits the configured threshold;
// otherwise nested-loop runs.
type HashJoin struct {
	Left  Operator
	Right Operator
	On    *pred.JoinComparison
}

// Execute builds on the smaller side and probes with the other.
func (j *HashJoin) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	left, err := j.Left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	right, err := j.Right.Execute(ctx)
	if err != nil {
		return nil, err
	}

	buildLeft := left.Len() <= right.Len()
	build, probe := left, right
	buildCol, probeCol := j.On.Left, j.On.Right
	if !buildLeft {
		build, probe = right, left
		buildCol, probeCol = j.On.Right, j.On.Left
	}

	table := make(map[key.Key][]*relation.Entry, build.Len())
	for _, e := range build.Entries() {
		v := e.Field(buildCol)
		if v == nil {
			continue
		}
		k := key.Single(v)
		table[k] = append(table[k], e)
	}

	tables := append(append([]string(nil), left.Tables()...), right.Tables()...)
	var out []*relation.Entry
	for _, pe := range probe.Entries() {
		v := pe.Field(probeCol)
		if v == nil {
			continue
		}
		for _, be := range table[key.Single(v)] {
			// Combined entries always carry the left side first.
			if buildLeft {
				out = append(out, relation.CombineEntries(be, left.Tables(), pe, right.Tables()))
			} else {
				out = append(out, relation.CombineEntries(pe, left.Tables(), be, right.Tables()))
			}
		}
	}
	return relation.New(out, tables), nil
}

func (j *HashJoin) String() string {
	return fmt.Sprintf("hash_join(%s)", j.On)
}
