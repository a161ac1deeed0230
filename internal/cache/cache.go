// Package cache provides the process-wide in-memory row cache. The database
// loads every table into the cache when it opens; a miss is counted but not
// filled from the backing store. Mutation is allowed only while the owning
// table's writer lock is held during commit.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/quern/quern/pkg/types"
)

// Metrics holds cache statistics for observability.
type Metrics struct {
	Hits   atomic.Int64
	Misses atomic.Int64
	Rows   atomic.Int64
}

// RowCache maps (table, row id) to row payloads.
type RowCache struct {
	mu      sync.RWMutex
	tables  map[string]map[types.RowID]*types.Row
	metrics Metrics
}

// NewRowCache creates an empty cache.
func NewRowCache() *RowCache {
	return &RowCache{tables: make(map[string]map[types.RowID]*types.Row)}
}

// Put stores one row.
func (c *RowCache) Put(table string, row *types.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(table, row)
}

// PutAll stores a batch of rows.
func (c *RowCache) PutAll(table string, rows []*types.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range rows {
		c.put(table, row)
	}
}

func (c *RowCache) put(table string, row *types.Row) {
	t, ok := c.tables[table]
	if !ok {
		t = make(map[types.RowID]*types.Row)
		c.tables[table] = t
	}
	if _, existed := t[row.ID]; !existed {
		c.metrics.Rows.Add(1)
	}
	t[row.ID] = row
}

// Get returns the cached row, or nil on a miss.
func (c *RowCache) Get(table string, id types.RowID) *types.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.tables[table][id]
	if !ok {
		c.metrics.Misses.Add(1)
		return nil
	}
	c.metrics.Hits.Add(1)
	return row
}

// GetMany returns the cached rows for the given ids, skipping misses.
func (c *RowCache) GetMany(table string, ids []types.RowID) []*types.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Row, 0, len(ids))
	for _, id := range ids {
		if row, ok := c.tables[table][id]; ok {
			c.metrics.Hits.Add(1)
			out = append(out, row)
		} else {
			c.metrics.Misses.Add(1)
		}
	}
	return out
}

// Remove drops one row.
func (c *RowCache) Remove(table string, id types.RowID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[table][id]; ok {
		delete(c.tables[table], id)
		c.metrics.Rows.Add(-1)
	}
}

// RowCount returns the number of cached rows of a table.
func (c *RowCache) RowCount(table string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables[table])
}

// TableRows returns all cached rows of a table in unspecified order.
func (c *RowCache) TableRows(table string) []*types.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]*types.Row, 0, len(c.tables[table]))
	for _, row := range c.tables[table] {
		rows = append(rows, row)
	}
	return rows
}

// Stats returns current hit, miss, and row counts.
func (c *RowCache) Stats() (hits, misses, rows int64) {
	return c.metrics.Hits.Load(), c.metrics.Misses.Load(), c.metrics.Rows.Load()
}

// HitRate returns the cache hit rate as a percentage.
func (c *RowCache) HitRate() float64 {
	hits := c.metrics.Hits.Load()
	misses := c.metrics.Misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
