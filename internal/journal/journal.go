// Package journal provides the per-transaction write journal: an ordered
// list of pending mutations overlaid on the row cache for read-your-writes,
// reduced to net per-row changes at commit time.
package journal

import (
	"sort"

	"github.com/quern/quern/pkg/types"
)

// Op is the kind of a journaled mutation.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is one pending change. Before is nil for inserts, After is nil
// for deletes.
type Mutation struct {
	Table  string
	RowID  types.RowID
	Op     Op
	Before *types.Row
	After  *types.Row
}

// NetChange is the reduced effect of all mutations on one row: the row state
// before the transaction and after it. Both nil means the row was created
// and destroyed inside the transaction and leaves no trace.
type NetChange struct {
	Table  string
	RowID  types.RowID
	Before *types.Row
	After  *types.Row
}

type rowKey struct {
	table string
	id    types.RowID
}

// Journal is owned by exactly one transaction and never shared.
type Journal struct {
	mutations []Mutation
	net       map[rowKey]*NetChange
	order     []rowKey
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{net: make(map[rowKey]*NetChange)}
}

// Insert journals a row creation.
func (j *Journal) Insert(table string, row *types.Row) {
	j.append(Mutation{Table: table, RowID: row.ID, Op: OpInsert, After: row})
}

// Update journals a row mutation.
func (j *Journal) Update(table string, before, after *types.Row) {
	j.append(Mutation{Table: table, RowID: after.ID, Op: OpUpdate, Before: before, After: after})
}

// Delete journals a row removal.
func (j *Journal) Delete(table string, before *types.Row) {
	j.append(Mutation{Table: table, RowID: before.ID, Op: OpDelete, Before: before})
}

func (j *Journal) append(m Mutation) {
	j.mutations = append(j.mutations, m)

	k := rowKey{m.Table, m.RowID}
	nc, ok := j.net[k]
	if !ok {
		nc = &NetChange{Table: m.Table, RowID: m.RowID, Before: m.Before}
		j.net[k] = nc
		j.order = append(j.order, k)
	}
	nc.After = m.After
}

// Get overlays the journal over a base read. ok reports whether the journal
// has an opinion about the row; deleted reports a pending delete.
func (j *Journal) Get(table string, id types.RowID) (row *types.Row, ok, deleted bool) {
	nc, found := j.net[rowKey{table, id}]
	if !found {
		return nil, false, false
	}
	if nc.After == nil {
		return nil, true, true
	}
	return nc.After, true, false
}

// Mutations returns the pending mutations in journal order.
func (j *Journal) Mutations() []Mutation { return j.mutations }

// Len returns the number of journaled mutations.
func (j *Journal) Len() int { return len(j.mutations) }

// NetChanges returns the reduced per-row changes in first-touch order.
// Rows created and destroyed within the transaction are elided.
func (j *Journal) NetChanges() []*NetChange {
	out := make([]*NetChange, 0, len(j.order))
	for _, k := range j.order {
		nc := j.net[k]
		if nc.Before == nil && nc.After == nil {
			continue
		}
		out = append(out, nc)
	}
	return out
}

// Tables returns the touched table names in lexicographic order, which is
// also the lock-acquisition order.
func (j *Journal) Tables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range j.order {
		if _, ok := seen[k.table]; !ok {
			seen[k.table] = struct{}{}
			out = append(out, k.table)
		}
	}
	sort.Strings(out)
	return out
}

// Clear discards every pending mutation, used on rollback.
func (j *Journal) Clear() {
	j.mutations = nil
	j.net = make(map[rowKey]*NetChange)
	j.order = nil
}
