// Package db provides the database façade: it wires schema, store, cache,
// indices, and the transaction runtime together, warms state on open, and
// exposes the query builders.
package db

import (
	"context"

	"go.uber.org/zap"

	"github.com/quern/quern/internal/cache"
	"github.com/quern/quern/internal/config"
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/observability"
	"github.com/quern/quern/internal/query/builder"
	"github.com/quern/quern/internal/query/plan"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/internal/store"
	"github.com/quern/quern/internal/txn"
	"github.com/quern/quern/pkg/types"
)

// Database is an open Quern database. All access goes through builders or
// explicitly created transactions.
type Database struct {
	schema *schema.Database
	cfg    *config.Config
	store  store.Store
	env    *txn.Env
	logger *zap.Logger
}

// Open creates the configured backing store and opens the database over it.
func Open(ctx context.Context, cfg *config.Config, sch *schema.Database, logger *zap.Logger) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeSyntax, err, "invalid configuration")
	}

	var st store.Store
	switch cfg.Store.Type {
	case config.StoreMemory:
		st = store.NewMemoryStore()
	case config.StoreSQLite:
		st = store.NewSQLiteStore(cfg.Store.Path)
	case config.StoreS3:
		s3, err := store.NewS3Store(ctx, store.S3Config{
			Bucket:       cfg.Store.S3.Bucket,
			Prefix:       cfg.Store.S3.Prefix,
			Region:       cfg.Store.S3.Region,
			Endpoint:     cfg.Store.S3.Endpoint,
			UsePathStyle: cfg.Store.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		st = s3
	}
	return OpenWithStore(ctx, cfg, sch, st, logger)
}

// OpenWithStore opens the database over a caller-provided store adapter.
// The store is opened, every table scanned to warm the cache, and all
// indices rebuilt from the scanned rows.
func OpenWithStore(ctx context.Context, cfg *config.Config, sch *schema.Database, st store.Store, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := st.Open(ctx, sch); err != nil {
		return nil, err
	}

	rowCache := cache.NewRowCache()
	indices := index.NewStore(sch)

	meta, err := st.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	for _, table := range sch.Tables() {
		rows, err := st.ScanTable(ctx, table.Name())
		if err != nil {
			return nil, err
		}
		rowCache.PutAll(table.Name(), rows)
		if err := indices.BuildFromRows(table, rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.ID > meta.HighWaterMarks[table.Name()] {
				meta.HighWaterMarks[table.Name()] = row.ID
			}
		}
		logger.Debug("table warmed",
			zap.String("table", table.Name()), zap.Int("rows", len(rows)))
	}

	env := &txn.Env{
		Schema:            sch,
		Cache:             rowCache,
		Indices:           indices,
		Store:             st,
		Locks:             txn.NewLockManager(),
		Logger:            logger,
		Stats:             observability.NewQueryStats(),
		HashJoinThreshold: cfg.HashJoinThreshold,
		Meta:              meta,
	}

	logger.Info("database open",
		zap.String("name", sch.Name()),
		zap.Int("version", sch.Version()),
		zap.Int("tables", len(sch.Tables())))

	return &Database{
		schema: sch,
		cfg:    cfg,
		store:  st,
		env:    env,
		logger: logger,
	}, nil
}

// Schema returns the database schema.
func (d *Database) Schema() *schema.Database { return d.schema }

// Table returns the named table.
func (d *Database) Table(name string) (*schema.Table, error) {
	return d.schema.Table(name)
}

// Degraded reports whether a failed flush left the database read-only.
func (d *Database) Degraded() bool { return d.env.Degraded.Load() }

// CacheStats returns row-cache hit, miss, and row counts.
func (d *Database) CacheStats() (hits, misses, rows int64) {
	return d.env.Cache.Stats()
}

// RowCount returns the committed row count of a table.
func (d *Database) RowCount(table string) int {
	return d.env.Cache.RowCount(table)
}

// QueryStats returns the engine-wide predicate frequency tracker.
func (d *Database) QueryStats() *observability.QueryStats {
	return d.env.Stats
}

// CreateTransaction creates a transaction over this database.
func (d *Database) CreateTransaction() *txn.Transaction {
	return txn.NewTransaction(d.env)
}

// Run executes queries inside a fresh transaction; it implements the
// builders' Runner.
func (d *Database) Run(ctx context.Context, queries []*plan.Node) ([]*relation.Relation, error) {
	return txn.NewTransaction(d.env).Exec(ctx, queries)
}

// Select starts a SELECT builder.
func (d *Database) Select(items ...interface{}) *builder.SelectBuilder {
	return builder.Select(d, items...)
}

// Insert starts an INSERT builder.
func (d *Database) Insert() *builder.InsertBuilder {
	return builder.Insert(d)
}

// InsertOrReplace starts an INSERT that replaces on primary-key collision.
func (d *Database) InsertOrReplace() *builder.InsertBuilder {
	return builder.InsertOrReplace(d)
}

// Update starts an UPDATE builder for the table.
func (d *Database) Update(t *schema.Table) *builder.UpdateBuilder {
	return builder.Update(d, t)
}

// Delete starts a DELETE builder.
func (d *Database) Delete() *builder.DeleteBuilder {
	return builder.Delete(d)
}

// Reconcile rebuilds cache and indices from the backing store and clears
// the degraded flag. It is the recovery path after a failed commit flush.
func (d *Database) Reconcile(ctx context.Context) error {
	d.env.CommitMu.Lock()
	defer d.env.CommitMu.Unlock()

	fresh := cache.NewRowCache()
	indices := index.NewStore(d.schema)
	meta, err := d.store.Metadata(ctx)
	if err != nil {
		return err
	}

	for _, table := range d.schema.Tables() {
		rows, err := d.store.ScanTable(ctx, table.Name())
		if err != nil {
			return err
		}
		fresh.PutAll(table.Name(), rows)
		if err := indices.BuildFromRows(table, rows); err != nil {
			return err
		}
		for _, row := range rows {
			if row.ID > meta.HighWaterMarks[table.Name()] {
				meta.HighWaterMarks[table.Name()] = row.ID
			}
		}
	}

	d.env.Cache = fresh
	d.env.Indices = indices
	d.env.Meta = meta
	d.env.Degraded.Store(false)
	d.logger.Info("database reconciled", zap.String("name", d.schema.Name()))
	return nil
}

// Close releases the backing store.
func (d *Database) Close(ctx context.Context) error {
	return d.store.Close(ctx)
}

// HighWaterMark returns the row-id high-water mark of a table.
func (d *Database) HighWaterMark(table string) types.RowID {
	return d.env.Meta.HighWaterMarks[table]
}
