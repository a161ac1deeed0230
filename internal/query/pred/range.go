package pred

import (
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
)

// RangeFor analyzes a predicate for index usability: when the predicate
// constrains exactly one column with range-expressible comparisons, it
// returns that column and the composed key range. Conjunctions over the same
// column compose by intersection. IN, MATCH, NEQ, and NULL checks are not
// range-expressible.
func RangeFor(p Predicate) (*schema.Column, key.Range, bool) {
	switch pr := p.(type) {
	case *Comparison:
		r, ok := comparisonRange(pr)
		if !ok {
			return nil, key.Range{}, false
		}
		return pr.Col, r, true

	case *Combined:
		if !pr.IsAnd {
			return nil, key.Range{}, false
		}
		var col *schema.Column
		composed := key.All()
		for _, child := range pr.Children {
			c, r, ok := RangeFor(child)
			if !ok {
				return nil, key.Range{}, false
			}
			if col == nil {
				col = c
			} else if col != c && (col.Table() != c.Table() || col.Name() != c.Name()) {
				return nil, key.Range{}, false
			}
			composed = composed.Intersect(r)
		}
		if col == nil {
			return nil, key.Range{}, false
		}
		return col, composed, true
	}
	return nil, key.Range{}, false
}

func comparisonRange(c *Comparison) (key.Range, bool) {
	switch c.Op {
	case OpEq:
		return key.Only(key.Single(c.Value)), true
	case OpLt:
		return key.UpperBound(key.Single(c.Value), true), true
	case OpLte:
		return key.UpperBound(key.Single(c.Value), false), true
	case OpGt:
		return key.LowerBound(key.Single(c.Value), true), true
	case OpGte:
		return key.LowerBound(key.Single(c.Value), false), true
	case OpBetween:
		return key.Bound(key.Single(c.Value), key.Single(c.High), false, false), true
	}
	return key.Range{}, false
}

// SingleTable returns the only table a predicate references, or false when
// it spans several.
func SingleTable(p Predicate) (string, bool) {
	set := TableSet(p)
	if len(set) != 1 {
		return "", false
	}
	for t := range set {
		return t, true
	}
	return "", false
}
