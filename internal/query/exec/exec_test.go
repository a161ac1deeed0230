package exec

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/observability"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// fakeSource serves static rows per table, with index scans answered by an
// index store built over the same rows.
type fakeSource struct {
	rows    map[string][]*types.Row
	indices *index.Store
}

func (f *fakeSource) TableRows(t *schema.Table) []*types.Row {
	return f.rows[t.Name()]
}

func (f *fakeSource) ScanRowIDs(t *schema.Table) []*types.Row {
	rows := append([]*types.Row(nil), f.rows[t.Name()]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (f *fakeSource) ScanIndex(idx *schema.Index, r *key.Range) []*types.Row {
	physical, err := f.indices.Index(idx.FullName())
	if err != nil {
		return nil
	}
	byID := make(map[types.RowID]*types.Row)
	for _, row := range f.rows[idx.Table().Name()] {
		byID[row.ID] = row
	}
	var out []*types.Row
	for _, id := range physical.GetRange(r) {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out
}

// hrFixture builds a two-table schema with a handful of rows.
func hrFixture(t *testing.T) (*schema.Database, *Context) {
	t.Helper()
	b := schema.NewBuilder("hr", 1)
	b.Table("Job").
		Column("id", types.TypeString).
		Column("title", types.TypeString).
		PrimaryKey("id")
	b.Table("Employee").
		Column("id", types.TypeString).
		Column("jobId", types.TypeString).
		Column("salary", types.TypeNumber).
		PrimaryKey("id").
		Index("idx_salary", "salary")
	sch, err := b.Build()
	require.NoError(t, err)

	jobs := []*types.Row{
		types.NewRow(1, map[string]interface{}{"id": "j1", "title": "Engineer"}),
		types.NewRow(2, map[string]interface{}{"id": "j2", "title": "Manager"}),
	}
	employees := []*types.Row{
		types.NewRow(1, map[string]interface{}{"id": "e1", "jobId": "j1", "salary": float64(100)}),
		types.NewRow(2, map[string]interface{}{"id": "e2", "jobId": "j1", "salary": float64(200)}),
		types.NewRow(3, map[string]interface{}{"id": "e3", "jobId": "j2", "salary": float64(300)}),
		types.NewRow(4, map[string]interface{}{"id": "e4", "jobId": "j2", "salary": float64(400)}),
	}

	indices := index.NewStore(sch)
	job, _ := sch.Table("Job")
	emp, _ := sch.Table("Employee")
	require.NoError(t, indices.BuildFromRows(job, jobs))
	require.NoError(t, indices.BuildFromRows(emp, employees))

	src := &fakeSource{
		rows:    map[string][]*types.Row{"Job": jobs, "Employee": employees},
		indices: indices,
	}
	ctx := &Context{
		Ctx:               context.Background(),
		Schema:            sch,
		Source:            src,
		Stats:             &observability.ExecStats{},
		HashJoinThreshold: 1000,
	}
	return sch, ctx
}

func empColumn(t *testing.T, sch *schema.Database, name string) *schema.Column {
	t.Helper()
	emp, err := sch.Table("Employee")
	require.NoError(t, err)
	col, err := emp.Column(name)
	require.NoError(t, err)
	return col
}
