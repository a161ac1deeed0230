// Package pred provides the predicate trees evaluated by the filter and
// join operators, and the key-range analysis the planner uses to turn
// predicates into index scans.
package pred

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpBetween
	OpIn
	OpMatch
	OpIsNull
	OpIsNotNull
)

// String returns the operator's symbol.
func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpBetween:
		return "BETWEEN"
	case OpIn:
		return "IN"
	case OpMatch:
		return "MATCH"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	}
	return "?"
}

// Predicate is a boolean condition over one relation entry.
type Predicate interface {
	// Eval reports whether the entry satisfies the predicate.
	Eval(e *relation.Entry) bool

	// Tables adds the referenced table names to the set.
	Tables(set map[string]struct{})

	String() string
}

// Comparison compares one column against literal values.
type Comparison struct {
	Col    *schema.Column
	Op     Op
	Value  interface{}   // single operand
	High   interface{}   // upper operand for BETWEEN
	Values []interface{} // operand list for IN
}

// Eval reports whether the entry's column value satisfies the comparison.
// NULL values satisfy only IS NULL.
func (c *Comparison) Eval(e *relation.Entry) bool {
	v := e.Field(c.Col)

	switch c.Op {
	case OpIsNull:
		return v == nil
	case OpIsNotNull:
		return v != nil
	}
	if v == nil {
		return false
	}

	switch c.Op {
	case OpEq:
		return types.Compare(v, c.Value) == 0
	case OpNeq:
		return types.Compare(v, c.Value) != 0
	case OpLt:
		return types.Compare(v, c.Value) < 0
	case OpLte:
		return types.Compare(v, c.Value) <= 0
	case OpGt:
		return types.Compare(v, c.Value) > 0
	case OpGte:
		return types.Compare(v, c.Value) >= 0
	case OpBetween:
		return types.Compare(v, c.Value) >= 0 && types.Compare(v, c.High) <= 0
	case OpIn:
		for _, candidate := range c.Values {
			if types.Compare(v, candidate) == 0 {
				return true
			}
		}
		return false
	case OpMatch:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		matched, err := regexp.MatchString(pattern, s)
		return err == nil && matched
	}
	return false
}

// Tables adds the column's table.
func (c *Comparison) Tables(set map[string]struct{}) {
	set[c.Col.Table().Name()] = struct{}{}
}

func (c *Comparison) String() string {
	name := c.Col.Table().Name() + "." + c.Col.Name()
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", name, c.Op)
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN %v AND %v", name, c.Value, c.High)
	case OpIn:
		return fmt.Sprintf("%s IN %v", name, c.Values)
	}
	return fmt.Sprintf("%s %s %v", name, c.Op, c.Value)
}

// Combined is a conjunction or disjunction of child predicates.
type Combined struct {
	IsAnd    bool
	Children []Predicate
}

// Eval short-circuits over the children.
func (c *Combined) Eval(e *relation.Entry) bool {
	for _, child := range c.Children {
		ok := child.Eval(e)
		if c.IsAnd && !ok {
			return false
		}
		if !c.IsAnd && ok {
			return true
		}
	}
	return c.IsAnd
}

// Tables adds every child's tables.
func (c *Combined) Tables(set map[string]struct{}) {
	for _, child := range c.Children {
		child.Tables(set)
	}
}

func (c *Combined) String() string {
	sep := " OR "
	if c.IsAnd {
		sep = " AND "
	}
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// JoinComparison compares a column of one table against a column of another.
// It is evaluated on combined (prefix-applied) entries.
type JoinComparison struct {
	Left  *schema.Column
	Right *schema.Column
	Op    Op
}

// Eval compares the two sides' values on the combined entry.
func (j *JoinComparison) Eval(e *relation.Entry) bool {
	l := e.Field(j.Left)
	r := e.Field(j.Right)
	if l == nil || r == nil {
		return false
	}
	cmp := types.Compare(l, r)
	switch j.Op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// Tables adds both sides' tables.
func (j *JoinComparison) Tables(set map[string]struct{}) {
	set[j.Left.Table().Name()] = struct{}{}
	set[j.Right.Table().Name()] = struct{}{}
}

func (j *JoinComparison) String() string {
	return fmt.Sprintf("%s.%s %s %s.%s",
		j.Left.Table().Name(), j.Left.Name(), j.Op,
		j.Right.Table().Name(), j.Right.Name())
}

// Constructors mirroring the builder surface.

func Eq(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpEq, Value: v}
}

func Neq(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpNeq, Value: v}
}

func Lt(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpLt, Value: v}
}

func Lte(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpLte, Value: v}
}

func Gt(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpGt, Value: v}
}

func Gte(col *schema.Column, v interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpGte, Value: v}
}

func Between(col *schema.Column, low, high interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpBetween, Value: low, High: high}
}

func In(col *schema.Column, values ...interface{}) *Comparison {
	return &Comparison{Col: col, Op: OpIn, Values: values}
}

func Match(col *schema.Column, pattern string) *Comparison {
	return &Comparison{Col: col, Op: OpMatch, Value: pattern}
}

func IsNull(col *schema.Column) *Comparison {
	return &Comparison{Col: col, Op: OpIsNull}
}

func IsNotNull(col *schema.Column) *Comparison {
	return &Comparison{Col: col, Op: OpIsNotNull}
}

func And(children ...Predicate) Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return &Combined{IsAnd: true, Children: children}
}

func Or(children ...Predicate) Predicate {
	if len(children) == 1 {
		return children[0]
	}
	return &Combined{Children: children}
}

func JoinEq(left, right *schema.Column) *JoinComparison {
	return &JoinComparison{Left: left, Right: right, Op: OpEq}
}

// TableSet returns the set of table names a predicate references.
func TableSet(p Predicate) map[string]struct{} {
	set := make(map[string]struct{})
	p.Tables(set)
	return set
}
