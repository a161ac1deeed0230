package txn

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quern/quern/internal/cache"
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/journal"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/observability"
	"github.com/quern/quern/internal/query/exec"
	"github.com/quern/quern/internal/query/plan"
	"github.com/quern/quern/internal/query/pred"
	"github.com/quern/quern/internal/relation"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/internal/store"
	"github.com/quern/quern/pkg/types"
)

// State is a transaction's lifecycle state.
type State int

const (
	StateCreated State = iota
	StateAcquiringLocks
	StateExecuting
	StateCommitting
	StateFinished
	StateRollingBack
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateAcquiringLocks:
		return "ACQUIRING_LOCKS"
	case StateExecuting:
		return "EXECUTING"
	case StateCommitting:
		return "COMMITTING"
	case StateFinished:
		return "FINISHED"
	case StateRollingBack:
		return "ROLLING_BACK"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Env bundles the long-lived shared components a transaction coordinates:
// schema, cache, indices, backing store, lock manager, and metadata. The
// database constructs one Env at open and hands it to every transaction.
type Env struct {
	Schema  *schema.Database
	Cache   *cache.RowCache
	Indices *index.Store
	Store   store.Store
	Locks   *LockManager
	Logger  *zap.Logger
	Stats   *observability.QueryStats

	// HashJoinThreshold is handed to planner and operators.
	HashJoinThreshold int

	// Meta holds the row-id high-water marks; CommitMu serializes the
	// COMMITTING critical section across transactions.
	Meta     *store.Metadata
	CommitMu sync.Mutex

	// Degraded flips when a backing-store flush fails; the database is then
	// read-only until a reconciliation pass.
	Degraded atomic.Bool
}

// CostSource implementation over committed state.

// IndexCost estimates an index range's cardinality.
func (e *Env) IndexCost(idx *schema.Index, r *key.Range) int {
	physical, err := e.Indices.Index(idx.FullName())
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return physical.Cost(r)
}

// TableRowCount returns the committed row count.
func (e *Env) TableRowCount(t *schema.Table) int {
	return e.Cache.RowCount(t.Name())
}

// Transaction owns a journal and a lock scope. It traverses
// CREATED → ACQUIRING_LOCKS → EXECUTING → COMMITTING → FINISHED, or rolls
// back to FAILED.
type Transaction struct {
	id  uuid.UUID
	env *Env

	mu        sync.Mutex
	state     State
	journal   *journal.Journal
	locks     []LockRequest
	cancelled atomic.Bool

	// nextRowID tracks txn-local row-id allocation per table, seeded from
	// the shared high-water marks under the table's writer lock.
	nextRowID map[string]types.RowID

	// ExecStats of the most recent Exec call.
	LastStats observability.ExecStats
}

// NewTransaction creates a transaction over the environment.
func NewTransaction(env *Env) *Transaction {
	return &Transaction{
		id:        uuid.New(),
		env:       env,
		state:     StateCreated,
		journal:   journal.New(),
		nextRowID: make(map[string]types.RowID),
	}
}

// ID returns the transaction id.
func (t *Transaction) ID() uuid.UUID { return t.id }

// State returns the current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancel requests cancellation. It is honored at the next checkpoint before
// COMMITTING; after COMMITTING begins it is ignored.
func (t *Transaction) Cancel() {
	t.cancelled.Store(true)
}

// Exec runs the queries in order inside this transaction and commits. Any
// failure rolls the whole transaction back. The returned relations parallel
// the queries.
func (t *Transaction) Exec(ctx context.Context, queries []*plan.Node) ([]*relation.Relation, error) {
	t.mu.Lock()
	if t.state != StateCreated {
		state := t.state
		t.mu.Unlock()
		return nil, errors.NewScope("transaction already used (state %s)", state)
	}
	t.state = StateAcquiringLocks
	t.mu.Unlock()

	writes := false
	var requests []LockRequest
	for _, q := range queries {
		reqs, w := lockScope(q)
		requests = append(requests, reqs...)
		writes = writes || w
	}

	if writes && t.env.Degraded.Load() {
		t.setState(StateFailed)
		return nil, errors.New(errors.CodeStore,
			"database is in read-only degraded mode; reconcile before writing")
	}

	if err := t.env.Locks.Acquire(ctx, requests); err != nil {
		t.setState(StateFailed)
		return nil, err
	}
	t.locks = requests
	t.setState(StateExecuting)

	started := time.Now()
	stats := &observability.ExecStats{}
	planner := plan.NewPlanner(t.env, t.env.HashJoinThreshold)
	execCtx := &exec.Context{
		Ctx:               ctx,
		Schema:            t.env.Schema,
		Source:            (*snapshot)(t),
		Mutator:           (*mutator)(t),
		Stats:             stats,
		HashJoinThreshold: t.env.HashJoinThreshold,
	}

	results := make([]*relation.Relation, 0, len(queries))
	for _, q := range queries {
		if t.cancelled.Load() {
			return nil, t.rollback(errors.NewCancelled("transaction cancelled"))
		}
		if err := ctx.Err(); err != nil {
			return nil, t.rollback(errors.NewCancelled("transaction context done"))
		}
		t.recordPredicates(q)
		op, err := planner.Plan(q)
		if err != nil {
			return nil, t.rollback(err)
		}
		rel, err := op.Execute(execCtx)
		if err != nil {
			return nil, t.rollback(err)
		}
		results = append(results, rel)
		stats.RowsEmitted += int64(rel.Len())
	}

	if t.cancelled.Load() {
		return nil, t.rollback(errors.NewCancelled("transaction cancelled"))
	}

	if err := t.commit(ctx); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(started)
	t.LastStats = *stats
	return results, nil
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// rollback discards the journal and releases locks. The transaction ends in
// FAILED; the returned error is the rollback cause.
func (t *Transaction) rollback(cause error) error {
	t.setState(StateRollingBack)
	t.journal.Clear()
	if t.locks != nil {
		t.env.Locks.Release(t.locks)
		t.locks = nil
	}
	t.setState(StateFailed)
	if t.env.Logger != nil {
		t.env.Logger.Debug("transaction rolled back",
			zap.String("txn", t.id.String()), zap.Error(cause))
	}
	return cause
}

// commit runs the five commit phases: validate, apply to indices, apply to
// cache, flush to the backing store, release locks. Failures before the
// flush roll back fully; a flush failure marks the database degraded.
func (t *Transaction) commit(ctx context.Context) error {
	t.setState(StateCommitting)
	t.env.CommitMu.Lock()
	defer t.env.CommitMu.Unlock()

	changes := t.journal.NetChanges()
	if len(changes) == 0 {
		t.finish()
		return nil
	}

	// Phase 1: validate unique and foreign-key constraints.
	if err := t.validate(changes); err != nil {
		return t.rollback(err)
	}

	// Phase 2: apply to indices. Validation makes constraint failures here
	// impossible; anything else is an invariant breach, undone defensively.
	applied := make([]*journal.NetChange, 0, len(changes))
	for _, nc := range changes {
		table, err := t.env.Schema.Table(nc.Table)
		if err != nil {
			t.revertIndexes(applied)
			return t.rollback(err)
		}
		if nc.Before != nil {
			t.env.Indices.RemoveRow(table, nc.Before)
		}
		if nc.After != nil {
			if err := t.env.Indices.AddRow(table, nc.After); err != nil {
				if nc.Before != nil {
					_ = t.env.Indices.AddRow(table, nc.Before)
				}
				t.revertIndexes(applied)
				return t.rollback(errors.NewUnknown(err, "index apply failed after validation"))
			}
		}
		applied = append(applied, nc)
	}

	// Phase 3: apply to cache. Must not fail between phases 2 and 3.
	for _, nc := range changes {
		if nc.After != nil {
			t.env.Cache.Put(nc.Table, nc.After)
		} else {
			t.env.Cache.Remove(nc.Table, nc.RowID)
		}
	}

	// Phase 4: flush to the backing store.
	batch := make([]store.BatchEntry, 0, len(changes))
	for _, nc := range changes {
		entry := store.BatchEntry{Table: nc.Table, RowID: nc.RowID}
		if nc.After != nil {
			entry.Payload = nc.After.Payload
		} else {
			entry.Tombstone = true
		}
		batch = append(batch, entry)
	}
	for table, next := range t.nextRowID {
		if next > t.env.Meta.HighWaterMarks[table] {
			t.env.Meta.HighWaterMarks[table] = next
		}
	}
	if err := t.env.Store.WriteBatch(ctx, batch, t.env.Meta); err != nil {
		// Cache and indices already carry the new state; the store does not.
		// The database degrades to read-only until reconciliation.
		t.env.Degraded.Store(true)
		if t.env.Logger != nil {
			t.env.Logger.Error("store flush failed; database degraded to read-only",
				zap.String("txn", t.id.String()), zap.Error(err))
		}
		t.setState(StateFailed)
		t.env.Locks.Release(t.locks)
		t.locks = nil
		return errors.NewStore(err, "commit flush failed")
	}

	// Phase 5: release locks.
	t.finish()
	return nil
}

func (t *Transaction) finish() {
	if t.locks != nil {
		t.env.Locks.Release(t.locks)
		t.locks = nil
	}
	t.setState(StateFinished)
}

func (t *Transaction) revertIndexes(applied []*journal.NetChange) {
	for i := len(applied) - 1; i >= 0; i-- {
		nc := applied[i]
		table, err := t.env.Schema.Table(nc.Table)
		if err != nil {
			continue
		}
		if nc.After != nil {
			t.env.Indices.RemoveRow(table, nc.After)
		}
		if nc.Before != nil {
			_ = t.env.Indices.AddRow(table, nc.Before)
		}
	}
}

// recordPredicates feeds the engine-wide predicate frequency tracker, which
// points at columns that deserve an index.
func (t *Transaction) recordPredicates(q *plan.Node) {
	if t.env.Stats == nil {
		return
	}
	var walkPred func(p pred.Predicate)
	walkPred = func(p pred.Predicate) {
		switch pr := p.(type) {
		case *pred.Comparison:
			t.env.Stats.RecordPredicate(
				pr.Col.Table().Name()+"."+pr.Col.Name(), pr.Op.String())
		case *pred.Combined:
			for _, child := range pr.Children {
				walkPred(child)
			}
		}
	}
	var walkNode func(n *plan.Node)
	walkNode = func(n *plan.Node) {
		if n.Pred != nil {
			walkPred(n.Pred)
		}
		for _, c := range n.Children {
			walkNode(c)
		}
	}
	walkNode(q)
}

// lockScope derives the lock requests of one query.
func lockScope(q *plan.Node) ([]LockRequest, bool) {
	writeTables := make(map[string]struct{})
	readTables := make(map[string]struct{})
	collectLockScope(q, writeTables, readTables)

	var out []LockRequest
	for name := range writeTables {
		out = append(out, LockRequest{Table: name, Write: true})
	}
	for name := range readTables {
		if _, ok := writeTables[name]; !ok {
			out = append(out, LockRequest{Table: name, Write: false})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out, len(writeTables) > 0
}

func collectLockScope(n *plan.Node, writes, reads map[string]struct{}) {
	switch n.Kind {
	case plan.KindInsertValues, plan.KindUpdate, plan.KindDelete:
		writes[n.Table.Name()] = struct{}{}
	default:
		if n.Table != nil {
			reads[n.Table.Name()] = struct{}{}
		}
	}
	for _, c := range n.Children {
		collectLockScope(c, writes, reads)
	}
}
