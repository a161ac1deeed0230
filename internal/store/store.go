// Package store provides the asynchronous backing-store abstraction
// underneath the cache, plus the shipped adapters: in-memory, SQLite, and
// S3. The engine talks to all of them through five methods; everything else
// is adapter detail.
package store

import (
	"context"

	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// BatchEntry is one row write inside a committed journal: a payload upsert
// or a tombstone.
type BatchEntry struct {
	// Table is the owning table name.
	Table string

	// RowID is the row identifier within the table.
	RowID types.RowID

	// Payload is the full row payload for an upsert; ignored for tombstones.
	Payload map[string]interface{}

	// Tombstone marks a row deletion.
	Tombstone bool
}

// Metadata is the per-database bookkeeping persisted under the __metadata__
// entry: the schema version and the row-id high-water mark per table.
type Metadata struct {
	// Version is the schema version the persisted data was written under.
	Version int `json:"version"`

	// HighWaterMarks maps table name to the highest row id ever assigned.
	HighWaterMarks map[string]types.RowID `json:"high_water_marks"`
}

// Store is the backing-store adapter contract. Implementations persist rows
// keyed by row id per table. Atomicity of WriteBatch is best-effort, bounded
// by the adapter's guarantees. Index state is never persisted; indices are
// rebuilt from ScanTable on open.
type Store interface {
	// Open loads or initializes the store for the given schema.
	Open(ctx context.Context, db *schema.Database) error

	// ScanTable reads all rows of a table, used at startup to warm the cache
	// and rebuild indices.
	ScanTable(ctx context.Context, table string) ([]*types.Row, error)

	// Metadata returns the persisted bookkeeping entry.
	Metadata(ctx context.Context) (*Metadata, error)

	// WriteBatch commits a journal's net changes and the updated metadata in
	// a single logical batch.
	WriteBatch(ctx context.Context, batch []BatchEntry, meta *Metadata) error

	// Close releases the adapter.
	Close(ctx context.Context) error
}

// NewMetadata creates fresh metadata for a schema.
func NewMetadata(db *schema.Database) *Metadata {
	m := &Metadata{
		Version:        db.Version(),
		HighWaterMarks: make(map[string]types.RowID),
	}
	for _, t := range db.Tables() {
		m.HighWaterMarks[t.Name()] = 0
	}
	return m
}
