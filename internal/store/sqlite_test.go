package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quern/quern/pkg/types"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	db := storeSchema(t)
	path := filepath.Join(t.TempDir(), "quern.db")

	s := NewSQLiteStore(path)
	require.NoError(t, s.Open(ctx, db))

	meta, err := s.Metadata(ctx)
	require.NoError(t, err)
	meta.HighWaterMarks["T"] = 2

	batch := []BatchEntry{
		{Table: "T", RowID: 1, Payload: map[string]interface{}{"id": int64(1), "name": "a", "at": nil}},
		{Table: "T", RowID: 2, Payload: map[string]interface{}{"id": int64(2), "name": "b", "at": nil}},
	}
	require.NoError(t, s.WriteBatch(ctx, batch, meta))
	require.NoError(t, s.Close(ctx))

	// Reopen and verify rows and metadata survived.
	s2 := NewSQLiteStore(path)
	require.NoError(t, s2.Open(ctx, db))
	defer s2.Close(ctx)

	rows, err := s2.ScanTable(ctx, "T")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.RowID(1), rows[0].ID)
	assert.Equal(t, "a", rows[0].Payload["name"])

	meta2, err := s2.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RowID(2), meta2.HighWaterMarks["T"])
}

func TestSQLiteStore_BatchOverwriteAndTombstone(t *testing.T) {
	ctx := context.Background()
	db := storeSchema(t)
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "quern.db"))
	require.NoError(t, s.Open(ctx, db))
	defer s.Close(ctx)

	meta, _ := s.Metadata(ctx)
	require.NoError(t, s.WriteBatch(ctx, []BatchEntry{
		{Table: "T", RowID: 1, Payload: map[string]interface{}{"id": int64(1), "name": "a", "at": nil}},
	}, meta))

	// Overwrite the payload, then delete it.
	require.NoError(t, s.WriteBatch(ctx, []BatchEntry{
		{Table: "T", RowID: 1, Payload: map[string]interface{}{"id": int64(1), "name": "z", "at": nil}},
	}, meta))
	rows, err := s.ScanTable(ctx, "T")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "z", rows[0].Payload["name"])

	require.NoError(t, s.WriteBatch(ctx, []BatchEntry{
		{Table: "T", RowID: 1, Tombstone: true},
	}, meta))
	rows, err = s.ScanTable(ctx, "T")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
