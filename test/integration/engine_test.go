package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/config"
	"github.com/quern/quern/internal/db"
	"github.com/quern/quern/internal/query/exec"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/schema"
)

const storeSchemaDoc = `
name: shop
version: 1
table:
  Customer:
    column:
      id: STRING
      name: STRING
      tier: INTEGER
    constraint:
      primaryKey: [id]
    index:
      idx_tier:
        column: [tier]
  Order:
    column:
      id: STRING
      customerId: STRING
      total: NUMBER
    constraint:
      primaryKey: [id]
      foreignKey:
        fk_customer:
          localColumn: customerId
          reference: Customer
          remoteColumn: id
    index:
      idx_total:
        column: [total]
`

// openShop loads the schema document and opens a database over the given
// configuration.
func openShop(t *testing.T, cfg *config.Config) *db.Database {
	t.Helper()
	sch, err := schema.Parse([]byte(storeSchemaDoc))
	require.NoError(t, err)
	d, err := db.Open(context.Background(), cfg, sch, nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close(context.Background()) })
	return d
}

func seedShop(t *testing.T, d *db.Database) {
	t.Helper()
	ctx := context.Background()
	customer, _ := d.Table("Customer")
	order, _ := d.Table("Order")

	_, err := d.Insert().Into(customer).Values(
		map[string]interface{}{"id": "c1", "name": "Ada", "tier": int64(1)},
		map[string]interface{}{"id": "c2", "name": "Grace", "tier": int64(2)},
		map[string]interface{}{"id": "c3", "name": "Edsger", "tier": int64(2)},
	).Exec(ctx)
	require.NoError(t, err)

	_, err = d.Insert().Into(order).Values(
		map[string]interface{}{"id": "o1", "customerId": "c1", "total": float64(10)},
		map[string]interface{}{"id": "o2", "customerId": "c1", "total": float64(20)},
		map[string]interface{}{"id": "o3", "customerId": "c2", "total": float64(30)},
		map[string]interface{}{"id": "o4", "customerId": "c3", "total": float64(40)},
	).Exec(ctx)
	require.NoError(t, err)
}

func TestEndToEnd_MemoryStore(t *testing.T) {
	d := openShop(t, config.DefaultConfig())
	seedShop(t, d)
	runEngineScenario(t, d)
}

func TestEndToEnd_SQLiteStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Type = config.StoreSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "shop.db")

	d := openShop(t, cfg)
	seedShop(t, d)
	runEngineScenario(t, d)

	// Reopen from the same file: cache and indices rebuild from the store.
	require.NoError(t, d.Close(context.Background()))
	d2 := openShop(t, cfg)
	assert.Equal(t, 3, d2.RowCount("Customer"))
	assert.Equal(t, 4, d2.RowCount("Order"))
	runReadScenario(t, d2)
}

func runEngineScenario(t *testing.T, d *db.Database) {
	t.Helper()
	ctx := context.Background()
	customer, _ := d.Table("Customer")
	order, _ := d.Table("Order")
	tier, _ := customer.Column("tier")
	total, _ := order.Column("total")
	customerID, _ := order.Column("customerId")
	cID, _ := customer.Column("id")
	name, _ := customer.Column("name")

	// Index-backed range query.
	rel, err := d.Select().From(order).
		Where(pred.Gte(total, float64(25))).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rel.Len())

	// Join with projection and ordering.
	rel, err = d.Select(name.As("who"), total).
		From(order).
		InnerJoin(customer, pred.JoinEq(customerID, cID)).
		OrderBy(total, exec.Desc).
		Limit(2).
		Exec(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rel.Len())
	assert.Equal(t, "Edsger", rel.Entries()[0].Row.Payload["who"])
	assert.Equal(t, float64(40), rel.Entries()[0].Row.Payload["Order"].(map[string]interface{})["total"])

	// Grouped aggregation.
	rel, err = d.Select(tier, exec.AggSpec{Fn: exec.AggCount, Alias: "n"}).
		From(customer).
		GroupBy(tier).
		Exec(ctx)
	require.NoError(t, err)
	counts := map[int64]int64{}
	for _, e := range rel.Entries() {
		counts[e.Row.Payload["tier"].(int64)] = e.Row.Payload["n"].(int64)
	}
	assert.Equal(t, int64(1), counts[1])
	assert.Equal(t, int64(2), counts[2])

	runReadScenario(t, d)
}

// runReadScenario checks queries that hold on any seeded database.
func runReadScenario(t *testing.T, d *db.Database) {
	t.Helper()
	ctx := context.Background()
	customer, _ := d.Table("Customer")
	cID, _ := customer.Column("id")

	rel, err := d.Select().From(customer).Where(pred.Eq(cID, "c2")).Exec(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())
	assert.Equal(t, "Grace", rel.Entries()[0].Row.Payload["name"])
}

// TestPlanEquivalence checks that the planner's chosen plan returns the same
// multiset of payloads as a brute-force evaluation of the same predicate.
func TestPlanEquivalence(t *testing.T) {
	d := openShop(t, config.DefaultConfig())
	seedShop(t, d)
	ctx := context.Background()

	order, _ := d.Table("Order")
	total, _ := order.Column("total")
	customerID, _ := order.Column("customerId")

	queries := []pred.Predicate{
		pred.Gte(total, float64(20)),
		pred.And(pred.Gte(total, float64(20)), pred.Eq(customerID, "c1")),
		pred.Or(pred.Eq(customerID, "c1"), pred.Gt(total, float64(35))),
		pred.Between(total, float64(15), float64(35)),
	}

	for _, q := range queries {
		// Planned execution (may pick an index scan).
		planned, err := d.Select().From(order).Where(q).Exec(ctx)
		require.NoError(t, err)

		// Brute force over a full scan.
		all, err := d.Select().From(order).Exec(ctx)
		require.NoError(t, err)
		var want []string
		for _, e := range all.Entries() {
			if q.Eval(e) {
				want = append(want, e.Row.Payload["id"].(string))
			}
		}

		var got []string
		for _, e := range planned.Entries() {
			got = append(got, e.Row.Payload["id"].(string))
		}
		assert.ElementsMatch(t, want, got, "predicate %s", q)
	}
}
