package exec

import (
	"fmt"
	"strings"

	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// Project reshapes entries down to the selected columns. Aliased columns
// land in flat payload slots. An empty column list passes the child through
// untouched, or with Distinct keeps whole payloads and drops duplicates.
// Aggregate projections read the flat slots the aggregate operator produced.
type Project struct {
	Child    Operator
	Columns  []*schema.Column
	Aggs     []AggSpec
	Distinct bool
}

// Execute projects the child's relation.
func (p *Project) Execute(ctx *Context) (*relation.Relation, error) {
	ctx.countOperator()
	in, err := p.Child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(p.Columns) == 0 && len(p.Aggs) == 0 && !p.Distinct {
		return in, nil
	}

	prefixed := len(in.Tables()) > 1 && len(p.Aggs) == 0

	out := make([]*relation.Entry, 0, in.Len())
	var seen map[string]struct{}
	if p.Distinct {
		seen = make(map[string]struct{})
	}
	for _, e := range in.Entries() {
		payload := make(map[string]interface{})
		if len(p.Columns) == 0 && len(p.Aggs) == 0 {
			for k, v := range e.Row.Payload {
				payload[k] = v
			}
		}
		for _, col := range p.Columns {
			v := e.Field(col)
			writeProjected(payload, col, v, prefixed)
		}
		for _, agg := range p.Aggs {
			payload[agg.Name()] = e.Row.Payload[agg.Name()]
		}

		if p.Distinct {
			fp := fingerprint(payload)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
		}

		out = append(out, relation.NewEntry(types.NewRow(e.Row.ID, payload), prefixed))
	}
	return relation.New(out, in.Tables()), nil
}

func writeProjected(payload map[string]interface{}, col *schema.Column, v interface{}, prefixed bool) {
	if alias := col.Alias(); alias != "" {
		payload[alias] = v
		return
	}
	if prefixed {
		sub, ok := payload[col.Table().Name()].(map[string]interface{})
		if !ok {
			sub = make(map[string]interface{})
			payload[col.Table().Name()] = sub
		}
		sub[col.Name()] = v
		return
	}
	payload[col.Name()] = v
}

func fingerprint(payload map[string]interface{}) string {
	// Deterministic across entries of one projection: identical column sets.
	var sb strings.Builder
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v|", k, payload[k])
	}
	return sb.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (p *Project) String() string {
	parts := make([]string, 0, len(p.Columns)+len(p.Aggs))
	for _, c := range p.Columns {
		parts = append(parts, c.Name())
	}
	for _, a := range p.Aggs {
		parts = append(parts, a.Name())
	}
	return fmt.Sprintf("project(%s)", strings.Join(parts, ", "))
}
