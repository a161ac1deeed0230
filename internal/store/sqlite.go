package store

import (
	"context"
	"database/sql"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// SQLiteStore persists rows in a single SQLite file: one relation keyed by
// (table, row id) with snappy-compressed payload blobs, plus the metadata
// entry. A batch commits inside one SQL transaction, so atomicity here is
// real rather than best-effort.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

const metadataKey = "__metadata__"

// NewSQLiteStore creates an adapter over the given database file.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open creates or loads the store file and its schema.
func (s *SQLiteStore) Open(ctx context.Context, db *schema.Database) error {
	handle, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return errors.NewStore(err, "failed to open sqlite store %q", s.path)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS rows (
			tbl     TEXT    NOT NULL,
			row_id  INTEGER NOT NULL,
			payload BLOB    NOT NULL,
			PRIMARY KEY (tbl, row_id)
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := handle.ExecContext(ctx, stmt); err != nil {
			handle.Close()
			return errors.NewStore(err, "failed to initialize sqlite store")
		}
	}
	s.db = handle

	// Seed metadata on first open.
	existing, err := s.loadMetadata(ctx)
	if err != nil {
		if errors.CodeOf(err) != errors.CodeNotFound {
			return err
		}
		return s.storeMetadata(ctx, s.db, NewMetadata(db))
	}
	if existing.Version > db.Version() {
		return errors.New(errors.CodeStore,
			"persisted schema version %d is newer than declared version %d",
			existing.Version, db.Version())
	}
	return nil
}

// ScanTable reads all rows of a table.
func (s *SQLiteStore) ScanTable(ctx context.Context, table string) ([]*types.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM rows WHERE tbl = ? ORDER BY row_id", table)
	if err != nil {
		return nil, errors.NewStore(err, "failed to scan table %q", table)
	}
	defer rows.Close()

	var out []*types.Row
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.NewStore(err, "failed to scan row of %q", table)
		}
		raw, err := snappy.Decode(nil, blob)
		if err != nil {
			return nil, errors.NewStore(err, "corrupt payload in %q", table)
		}
		decoded, err := decodeRows(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStore(err, "scan of %q interrupted", table)
	}
	return out, nil
}

// Metadata returns the bookkeeping entry.
func (s *SQLiteStore) Metadata(ctx context.Context) (*Metadata, error) {
	return s.loadMetadata(ctx)
}

// WriteBatch applies a journal's net changes and metadata in one SQL
// transaction.
func (s *SQLiteStore) WriteBatch(ctx context.Context, batch []BatchEntry, meta *Metadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStore(err, "failed to begin batch")
	}
	defer tx.Rollback()

	for _, e := range batch {
		if e.Tombstone {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM rows WHERE tbl = ? AND row_id = ?", e.Table, int64(e.RowID))
		} else {
			var encoded []byte
			encoded, err = encodeRows([]*types.Row{types.NewRow(e.RowID, e.Payload)})
			if err == nil {
				_, err = tx.ExecContext(ctx,
					"INSERT OR REPLACE INTO rows (tbl, row_id, payload) VALUES (?, ?, ?)",
					e.Table, int64(e.RowID), snappy.Encode(nil, encoded))
			}
		}
		if err != nil {
			return errors.NewStore(err, "failed to write row %d of %q", e.RowID, e.Table)
		}
	}

	if err := s.storeMetadata(ctx, tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStore(err, "failed to commit batch")
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.NewStore(err, "failed to close sqlite store")
	}
	return nil
}

func (s *SQLiteStore) loadMetadata(ctx context.Context) (*Metadata, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT v FROM meta WHERE k = ?", metadataKey).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("no metadata entry")
	}
	if err != nil {
		return nil, errors.NewStore(err, "failed to load metadata")
	}
	return decodeMetadata(blob)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) storeMetadata(ctx context.Context, ex execer, meta *Metadata) error {
	blob, err := encodeMetadata(meta)
	if err != nil {
		return errors.NewStore(err, "failed to encode metadata")
	}
	if _, err := ex.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (k, v) VALUES (?, ?)", metadataKey, blob); err != nil {
		return errors.NewStore(err, "failed to store metadata")
	}
	return nil
}
