package store

import (
	"context"
	"sync"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// MemoryStore keeps everything in process memory. It is the default adapter
// for ephemeral databases and the workhorse of the test suite.
type MemoryStore struct {
	mu     sync.RWMutex
	opened bool
	tables map[string]map[types.RowID]*types.Row
	meta   *Metadata

	// FailWrites makes every WriteBatch fail with a STORE error. Tests use it
	// to drive the degraded-mode path.
	FailWrites bool
}

// NewMemoryStore creates an unopened in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Open initializes per-table storage for the schema.
func (m *MemoryStore) Open(ctx context.Context, db *schema.Database) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStore(err, "open interrupted")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return errors.New(errors.CodeStore, "store already open")
	}
	m.tables = make(map[string]map[types.RowID]*types.Row, len(db.Tables()))
	for _, t := range db.Tables() {
		m.tables[t.Name()] = make(map[types.RowID]*types.Row)
	}
	m.meta = NewMetadata(db)
	m.opened = true
	return nil
}

// ScanTable reads all rows of a table.
func (m *MemoryStore) ScanTable(ctx context.Context, table string) ([]*types.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStore(err, "scan interrupted")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, errors.NewNotFound("store has no table %q", table)
	}
	rows := make([]*types.Row, 0, len(t))
	for _, row := range t {
		rows = append(rows, row.Copy())
	}
	return rows, nil
}

// Metadata returns the bookkeeping entry.
func (m *MemoryStore) Metadata(ctx context.Context) (*Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.opened {
		return nil, errors.New(errors.CodeStore, "store not open")
	}
	return m.meta, nil
}

// WriteBatch applies a journal's net changes atomically.
func (m *MemoryStore) WriteBatch(ctx context.Context, batch []BatchEntry, meta *Metadata) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStore(err, "write interrupted")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return errors.New(errors.CodeStore, "store not open")
	}
	if m.FailWrites {
		return errors.New(errors.CodeStore, "write failure injected")
	}
	for _, e := range batch {
		t, ok := m.tables[e.Table]
		if !ok {
			return errors.NewNotFound("store has no table %q", e.Table)
		}
		if e.Tombstone {
			delete(t, e.RowID)
		} else {
			t[e.RowID] = types.NewRow(e.RowID, e.Payload).Copy()
		}
	}
	m.meta = meta
	return nil
}

// Close releases the store.
func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	m.tables = nil
	return nil
}
