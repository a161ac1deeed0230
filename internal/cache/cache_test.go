package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quern/quern/pkg/types"
)

func TestRowCache_PutGetRemove(t *testing.T) {
	c := NewRowCache()

	row := types.NewRow(1, map[string]interface{}{"v": int64(1)})
	c.Put("T", row)

	assert.Equal(t, row, c.Get("T", 1))
	assert.Nil(t, c.Get("T", 2))
	assert.Nil(t, c.Get("U", 1))
	assert.Equal(t, 1, c.RowCount("T"))

	c.Remove("T", 1)
	assert.Nil(t, c.Get("T", 1))
	assert.Equal(t, 0, c.RowCount("T"))
}

func TestRowCache_GetMany(t *testing.T) {
	c := NewRowCache()
	rows := []*types.Row{
		types.NewRow(1, map[string]interface{}{"v": int64(1)}),
		types.NewRow(2, map[string]interface{}{"v": int64(2)}),
	}
	c.PutAll("T", rows)

	got := c.GetMany("T", []types.RowID{1, 3, 2})
	assert.Len(t, got, 2)
	assert.Equal(t, types.RowID(1), got[0].ID)
	assert.Equal(t, types.RowID(2), got[1].ID)

	assert.Len(t, c.TableRows("T"), 2)
}

func TestRowCache_Metrics(t *testing.T) {
	c := NewRowCache()
	c.Put("T", types.NewRow(1, nil))

	c.Get("T", 1)
	c.Get("T", 2)
	c.Get("T", 1)

	hits, misses, rows := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), rows)
	assert.InDelta(t, 66.6, c.HitRate(), 0.1)

	// Replacing a row does not inflate the row count.
	c.Put("T", types.NewRow(1, map[string]interface{}{"v": int64(2)}))
	_, _, rows = c.Stats()
	assert.Equal(t, int64(1), rows)
}
