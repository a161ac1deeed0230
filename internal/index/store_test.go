package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

func testSchema(t *testing.T) *schema.Database {
	t.Helper()
	b := schema.NewBuilder("db", 1)
	b.Table("Item").
		Column("id", types.TypeString).
		Column("owner", types.TypeString).
		PrimaryKey("id").
		Index("idx_owner", "owner")
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

func TestStore_AddRemoveRow(t *testing.T) {
	db := testSchema(t)
	item, _ := db.Table("Item")
	s := NewStore(db)

	row := types.NewRow(1, map[string]interface{}{"id": "a", "owner": "u1"})
	require.NoError(t, s.AddRow(item, row))

	pk, err := s.Index("Item.#pk")
	require.NoError(t, err)
	assert.Equal(t, []types.RowID{1}, pk.Get(key.Single("a")))

	owner, err := s.Index("Item.idx_owner")
	require.NoError(t, err)
	assert.Equal(t, []types.RowID{1}, owner.Get(key.Single("u1")))

	rid, err := s.RowIDIndex("Item")
	require.NoError(t, err)
	assert.True(t, rid.ContainsRow(1))

	// Duplicate primary key is a CONSTRAINT failure.
	dup := types.NewRow(2, map[string]interface{}{"id": "a", "owner": "u2"})
	err = s.AddRow(item, dup)
	assert.Equal(t, errors.CodeConstraint, errors.CodeOf(err))

	s.RemoveRow(item, row)
	assert.Empty(t, pk.Get(key.Single("a")))
	assert.Empty(t, owner.Get(key.Single("u1")))
	assert.False(t, rid.ContainsRow(1))
}

func TestStore_BuildFromRows(t *testing.T) {
	db := testSchema(t)
	item, _ := db.Table("Item")
	s := NewStore(db)

	rows := []*types.Row{
		types.NewRow(1, map[string]interface{}{"id": "a", "owner": "u1"}),
		types.NewRow(2, map[string]interface{}{"id": "b", "owner": "u1"}),
		types.NewRow(3, map[string]interface{}{"id": "c", "owner": "u2"}),
	}
	require.NoError(t, s.BuildFromRows(item, rows))

	owner, _ := s.Index("Item.idx_owner")
	assert.Equal(t, []types.RowID{1, 2}, owner.Get(key.Single("u1")))
	assert.Equal(t, 3, owner.Cost(nil))

	// Rebuilding replaces prior contents.
	require.NoError(t, s.BuildFromRows(item, rows[:1]))
	assert.Equal(t, 1, owner.Cost(nil))
}

func TestStore_TableIndicesOrder(t *testing.T) {
	db := testSchema(t)
	item, _ := db.Table("Item")
	s := NewStore(db)

	indices := s.TableIndices(item)
	require.Len(t, indices, 2)
	assert.Equal(t, "Item.#pk", indices[0].Name())
	assert.Equal(t, "Item.idx_owner", indices[1].Name())
}

func TestKeyFor_Composite(t *testing.T) {
	b := schema.NewBuilder("db", 1)
	b.Table("T").
		Column("a", types.TypeString).
		Column("b", types.TypeInteger).
		PrimaryKey("a", "b")
	db, err := b.Build()
	require.NoError(t, err)
	tbl, _ := db.Table("T")

	k := KeyFor(tbl.PrimaryKey(), map[string]interface{}{"a": "x", "b": int64(2)})
	assert.Equal(t, key.Encode("x", int64(2)), k)
}
