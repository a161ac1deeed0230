package exec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

func TestAggregate_Scalar(t *testing.T) {
	sch, ctx := hrFixture(t)
	emp, _ := sch.Table("Employee")
	salary := empColumn(t, sch, "salary")

	rel, err := (&Aggregate{
		Child: &FullTableScan{Table: emp},
		Aggs: []AggSpec{
			{Fn: AggCount},
			{Fn: AggSum, Col: salary},
			{Fn: AggAvg, Col: salary},
			{Fn: AggMin, Col: salary},
			{Fn: AggMax, Col: salary},
		},
	}).Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())

	p := rel.Entries()[0].Row.Payload
	assert.Equal(t, int64(4), p["count(*)"])
	assert.Equal(t, float64(1000), p["sum(salary)"])
	assert.Equal(t, float64(250), p["avg(salary)"])
	assert.Equal(t, float64(100), p["min(salary)"])
	assert.Equal(t, float64(400), p["max(salary)"])
}

func TestAggregate_GroupBy(t *testing.T) {
	sch, ctx := hrFixture(t)
	emp, _ := sch.Table("Employee")
	salary := empColumn(t, sch, "salary")
	jobID := empColumn(t, sch, "jobId")

	rel, err := (&Aggregate{
		Child:   &FullTableScan{Table: emp},
		GroupBy: []*schema.Column{jobID},
		Aggs: []AggSpec{
			{Fn: AggCount, Col: salary},
			{Fn: AggSum, Col: salary, Alias: "total"},
		},
	}).Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rel.Len())

	// Groups come out in first-occurrence order.
	first := rel.Entries()[0].Row.Payload
	assert.Equal(t, "j1", first["jobId"])
	assert.Equal(t, int64(2), first["count(salary)"])
	assert.Equal(t, float64(300), first["total"])

	second := rel.Entries()[1].Row.Payload
	assert.Equal(t, "j2", second["jobId"])
	assert.Equal(t, float64(700), second["total"])
}

func TestAggregate_EmptyInput(t *testing.T) {
	sch, ctx := hrFixture(t)
	salary := empColumn(t, sch, "salary")

	empty := relation.New(nil, []string{"Employee"})

	// Scalar aggregation over empty input yields one row: zero count, nil
	// for the value aggregations.
	rel, err := (&Aggregate{
		Child: materialized{empty},
		Aggs: []AggSpec{
			{Fn: AggCount},
			{Fn: AggSum, Col: salary},
			{Fn: AggMin, Col: salary},
		},
	}).Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())
	p := rel.Entries()[0].Row.Payload
	assert.Equal(t, int64(0), p["count(*)"])
	assert.Nil(t, p["sum(salary)"])
	assert.Nil(t, p["min(salary)"])

	// Grouped aggregation over empty input yields no rows.
	jobID := empColumn(t, sch, "jobId")
	rel, err = (&Aggregate{
		Child:   materialized{empty},
		GroupBy: []*schema.Column{jobID},
		Aggs:    []AggSpec{{Fn: AggCount}},
	}).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rel.Len())
}

func TestAggregate_NullsIgnored(t *testing.T) {
	sch, ctx := hrFixture(t)
	salary := empColumn(t, sch, "salary")

	rows := []*types.Row{
		types.NewRow(1, map[string]interface{}{"salary": float64(10)}),
		types.NewRow(2, map[string]interface{}{"salary": nil}),
		types.NewRow(3, map[string]interface{}{"salary": float64(30)}),
	}
	rel := relation.FromRows(rows, []string{"Employee"})

	out, err := (&Aggregate{
		Child: materialized{rel},
		Aggs: []AggSpec{
			{Fn: AggCount},
			{Fn: AggCount, Col: salary},
			{Fn: AggAvg, Col: salary},
		},
	}).Execute(ctx)
	require.NoError(t, err)
	p := out.Entries()[0].Row.Payload
	assert.Equal(t, int64(3), p["count(*)"])
	assert.Equal(t, int64(2), p["count(salary)"])
	assert.Equal(t, float64(20), p["avg(salary)"])
}

func TestAggregate_DistinctStddevGeomean(t *testing.T) {
	sch, ctx := hrFixture(t)
	salary := empColumn(t, sch, "salary")

	rows := []*types.Row{
		types.NewRow(1, map[string]interface{}{"salary": float64(2)}),
		types.NewRow(2, map[string]interface{}{"salary": float64(8)}),
		types.NewRow(3, map[string]interface{}{"salary": float64(2)}),
	}
	rel := relation.FromRows(rows, []string{"Employee"})

	out, err := (&Aggregate{
		Child: materialized{rel},
		Aggs: []AggSpec{
			{Fn: AggDistinct, Col: salary},
			{Fn: AggStddev, Col: salary},
			{Fn: AggGeomean, Col: salary},
		},
	}).Execute(ctx)
	require.NoError(t, err)
	p := out.Entries()[0].Row.Payload

	distinct := p["distinct(salary)"].([]interface{})
	assert.Equal(t, []interface{}{float64(2), float64(8)}, distinct)

	// Sample stddev of {2, 8, 2} is sqrt(12).
	assert.InDelta(t, math.Sqrt(12), p["stddev(salary)"].(float64), 1e-9)

	// Geometric mean of {2, 8, 2} is cbrt(32).
	assert.InDelta(t, math.Cbrt(32), p["geomean(salary)"].(float64), 1e-9)
}
