package exec

import (
	"fmt"
	"math"
	"strings"

	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// AggFn identifies an aggregation function.
type AggFn int

const (
	AggCount AggFn = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggDistinct
	AggStddev
	AggGeomean
)

// String returns the function name.
func (f AggFn) String() string {
	switch f {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggDistinct:
		return "distinct"
	case AggStddev:
		return "stddev"
	case AggGeomean:
		return "geomean"
	}
	return "?"
}

// AggSpec is one aggregation over a column. A nil column is legal for COUNT
// and counts rows.
type AggSpec struct {
	Fn  AggFn
	Col *schema.Column

	// Alias overrides the result slot name.
	Alias string
}

// Name returns the flat payload slot the result lands in.
func (a AggSpec) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	if a.Col == nil {
		return fmt.Sprintf("%s(*)", a.Fn)
	}
	return fmt.Sprintf("%s(%s)", a.Fn, a.Col.Name())
}

// Aggregate groups the child's entries by the group-by columns and computes
// the aggregation functions per group in a single pass over a hashed
// grouping. With no group-by columns it produces exactly one entry, even
// over empty input. Output entries carry flat payloads: group column values
// under the column names, aggregate results under the spec names.
type Aggregate struct {
	Child   Operator
	GroupBy []*schema.Column
	Aggs    []AggSpec
}

type group struct {
	keyValues []interface{}
	states    []*aggState
}

// Execute computes the grouped aggregation.
func (a *Aggregate) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := a.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[key.Key]*group)
	var order []key.Key

	for _, e := range in.Entries() {
		values := make([]interface{}, len(a.GroupBy))
		for i, col := range a.GroupBy {
			values[i] = e.Field(col)
		}
		gk := key.Encode(values...)

		g, ok := groups[gk]
		if !ok {
			g = &group{keyValues: values, states: newAggStates(a.Aggs)}
			groups[gk] = g
			order = append(order, gk)
		}
		for i, spec := range a.Aggs {
			var v interface{} = nil
			if spec.Col != nil {
				v = e.Field(spec.Col)
			}
			g.states[i].accumulate(spec, v)
		}
	}

	// A scalar aggregation over empty input still yields one row.
	if len(a.GroupBy) == 0 && len(order) == 0 {
		gk := key.Encode()
		groups[gk] = &group{states: newAggStates(a.Aggs)}
		order = append(order, gk)
	}

	out := make([]*relation.Entry, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		payload := make(map[string]interface{}, len(a.GroupBy)+len(a.Aggs))
		for i, col := range a.GroupBy {
			payload[col.Name()] = g.keyValues[i]
		}
		for i, spec := range a.Aggs {
			payload[spec.Name()] = g.states[i].result(spec)
		}
		out = append(out, relation.NewEntry(types.NewRow(types.DummyRowID, payload), false))
	}
	return relation.New(out, in.Tables()), nil
}

func (a *Aggregate) String() string {
	parts := make([]string, len(a.Aggs))
	for i, spec := range a.Aggs {
		parts[i] = spec.Name()
	}
	if len(a.GroupBy) == 0 {
		return fmt.Sprintf("aggregate(%s)", strings.Join(parts, ", "))
	}
	cols := make([]string, len(a.GroupBy))
	for i, c := range a.GroupBy {
		cols[i] = c.Name()
	}
	return fmt.Sprintf("group_by(%s; %s)", strings.Join(cols, ", "), strings.Join(parts, ", "))
}

// aggState accumulates one aggregation function over one group.
type aggState struct {
	count    int64
	sum      float64
	logSum   float64
	logCount int64
	sqSum    float64
	min      interface{}
	max      interface{}
	distinct []interface{}
	seen     map[key.Key]struct{}
}

func newAggStates(specs []AggSpec) []*aggState {
	states := make([]*aggState, len(specs))
	for i, spec := range specs {
		s := &aggState{}
		if spec.Fn == AggDistinct {
			s.seen = make(map[key.Key]struct{})
		}
		states[i] = s
	}
	return states
}

// accumulate folds one value in. NULLs are ignored by every function except
// COUNT(*), which counts rows.
func (s *aggState) accumulate(spec AggSpec, v interface{}) {
	if spec.Fn == AggCount && spec.Col == nil {
		s.count++
		return
	}
	if v == nil {
		return
	}
	s.count++

	switch spec.Fn {
	case AggSum, AggAvg, AggStddev:
		if f, ok := types.ToFloat(v); ok {
			s.sum += f
			s.sqSum += f * f
		}
	case AggGeomean:
		if f, ok := types.ToFloat(v); ok && f > 0 {
			s.logSum += math.Log(f)
			s.logCount++
		}
	case AggMin:
		if s.min == nil || types.Compare(v, s.min) < 0 {
			s.min = v
		}
	case AggMax:
		if s.max == nil || types.Compare(v, s.max) > 0 {
			s.max = v
		}
	case AggDistinct:
		k := key.Single(v)
		if _, dup := s.seen[k]; !dup {
			s.seen[k] = struct{}{}
			s.distinct = append(s.distinct, v)
		}
	}
}

// result finalizes the accumulated state. Aggregations over no values yield
// nil, except COUNT, which yields zero.
func (s *aggState) result(spec AggSpec) interface{} {
	switch spec.Fn {
	case AggCount:
		return s.count
	case AggSum:
		if s.count == 0 {
			return nil
		}
		return s.sum
	case AggAvg:
		if s.count == 0 {
			return nil
		}
		return s.sum / float64(s.count)
	case AggMin:
		return s.min
	case AggMax:
		return s.max
	case AggDistinct:
		return s.distinct
	case AggStddev:
		if s.count < 2 {
			return nil
		}
		// Sample standard deviation.
		n := float64(s.count)
		variance := (s.sqSum - s.sum*s.sum/n) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		return math.Sqrt(variance)
	case AggGeomean:
		if s.logCount == 0 {
			return nil
		}
		return math.Exp(s.logSum / float64(s.logCount))
	}
	return nil
}
