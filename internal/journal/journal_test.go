package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/pkg/types"
)

func row(id types.RowID, name string) *types.Row {
	return types.NewRow(id, map[string]interface{}{"name": name})
}

func TestJournal_ReadYourWrites(t *testing.T) {
	j := New()

	// Absent rows have no overlay opinion.
	_, ok, _ := j.Get("T", 1)
	assert.False(t, ok)

	inserted := row(1, "a")
	j.Insert("T", inserted)
	got, ok, deleted := j.Get("T", 1)
	require.True(t, ok)
	assert.False(t, deleted)
	assert.Equal(t, inserted, got)

	updated := row(1, "b")
	j.Update("T", inserted, updated)
	got, _, _ = j.Get("T", 1)
	assert.Equal(t, updated, got)

	j.Delete("T", updated)
	_, ok, deleted = j.Get("T", 1)
	assert.True(t, ok)
	assert.True(t, deleted)
}

func TestJournal_MutationOrder(t *testing.T) {
	j := New()
	j.Insert("B", row(1, "x"))
	j.Insert("A", row(2, "y"))
	j.Delete("B", row(1, "x"))

	muts := j.Mutations()
	require.Len(t, muts, 3)
	assert.Equal(t, OpInsert, muts[0].Op)
	assert.Equal(t, "B", muts[0].Table)
	assert.Equal(t, OpDelete, muts[2].Op)

	assert.Equal(t, []string{"A", "B"}, j.Tables())
}

func TestJournal_NetChanges(t *testing.T) {
	j := New()

	// Insert then update coalesces to one insert with the final payload.
	first := row(1, "a")
	j.Insert("T", first)
	second := row(1, "b")
	j.Update("T", first, second)

	// Insert then delete leaves no trace.
	ghost := row(2, "ghost")
	j.Insert("T", ghost)
	j.Delete("T", ghost)

	// Update of a pre-existing row keeps its original Before.
	pre := row(3, "old")
	mid := row(3, "mid")
	fin := row(3, "new")
	j.Update("T", pre, mid)
	j.Update("T", mid, fin)

	changes := j.NetChanges()
	require.Len(t, changes, 2)

	assert.Equal(t, types.RowID(1), changes[0].RowID)
	assert.Nil(t, changes[0].Before)
	assert.Equal(t, "b", changes[0].After.Payload["name"])

	assert.Equal(t, types.RowID(3), changes[1].RowID)
	assert.Equal(t, "old", changes[1].Before.Payload["name"])
	assert.Equal(t, "new", changes[1].After.Payload["name"])
}

func TestJournal_Clear(t *testing.T) {
	j := New()
	j.Insert("T", row(1, "a"))
	j.Clear()
	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.NetChanges())
	assert.Empty(t, j.Tables())
	_, ok, _ := j.Get("T", 1)
	assert.False(t, ok)
}
