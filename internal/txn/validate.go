package txn

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/journal"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// validate is commit phase 1: unique and foreign-key constraints checked
// against the journal's net changes before anything is applied. A failure
// here rolls the whole transaction back with committed state untouched.
func (t *Transaction) validate(changes []*journal.NetChange) error {
	byTable := make(map[string][]*journal.NetChange)
	for _, nc := range changes {
		byTable[nc.Table] = append(byTable[nc.Table], nc)
	}

	for tableName, ncs := range byTable {
		table, err := t.env.Schema.Table(tableName)
		if err != nil {
			return err
		}
		if err := t.validateUnique(table, ncs); err != nil {
			return err
		}
	}

	for _, nc := range changes {
		table, _ := t.env.Schema.Table(nc.Table)
		if nc.After != nil {
			if err := t.validateOutgoingForeignKeys(table, nc.After); err != nil {
				return err
			}
		}
		if nc.Before != nil {
			if err := t.validateIncomingForeignKeys(table, nc); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateUnique checks every unique index of one table against the net
// changes: no duplicate keys within the batch, and no collision with a
// committed key that the batch does not free.
func (t *Transaction) validateUnique(table *schema.Table, ncs []*journal.NetChange) error {
	for _, meta := range table.Indexes() {
		if !meta.Unique {
			continue
		}

		freed := make(map[key.Key]int)
		for _, nc := range ncs {
			if nc.Before != nil {
				freed[index.KeyFor(meta, nc.Before.Payload)]++
			}
		}

		added := make(map[key.Key]struct{})
		for _, nc := range ncs {
			if nc.After == nil {
				continue
			}
			k := index.KeyFor(meta, nc.After.Payload)
			if _, dup := added[k]; dup {
				return errors.NewConstraint(
					"duplicate key on unique index %q", meta.FullName())
			}
			added[k] = struct{}{}

			physical, err := t.env.Indices.Index(meta.FullName())
			if err != nil {
				return err
			}
			if physical.ContainsKey(k) && freed[k] == 0 {
				return errors.NewConstraint(
					"duplicate key on unique index %q", meta.FullName())
			}
		}
	}
	return nil
}

// validateOutgoingForeignKeys checks that every foreign-key value of a
// written row references an existing visible row in the remote table.
func (t *Transaction) validateOutgoingForeignKeys(table *schema.Table, row *types.Row) error {
	for _, fk := range table.ForeignKeys() {
		v := row.Payload[fk.Local.Name()]
		if v == nil {
			continue
		}
		remote, err := t.env.Schema.Table(fk.RemoteTable)
		if err != nil {
			return err
		}
		if !t.visibleValueExists(remote, fk.RemoteColumn, v, types.DummyRowID) {
			return errors.NewConstraint(
				"foreign key %q on %q: no row in %q with %s = %v",
				fk.Name, table.Name(), fk.RemoteTable, fk.RemoteColumn, v)
		}
	}
	return nil
}

// validateIncomingForeignKeys restricts deletes and updates that would leave
// referencing rows dangling: when a removed (or rewritten) referenced value
// disappears from the remote table, no visible referencing row may carry it.
func (t *Transaction) validateIncomingForeignKeys(table *schema.Table, nc *journal.NetChange) error {
	for _, other := range t.env.Schema.Tables() {
		for _, fk := range other.ForeignKeys() {
			if fk.RemoteTable != table.Name() {
				continue
			}
			old := nc.Before.Payload[fk.RemoteColumn]
			if old == nil {
				continue
			}
			if nc.After != nil && types.Compare(nc.After.Payload[fk.RemoteColumn], old) == 0 {
				continue
			}
			// The value may survive on another visible row of this table.
			if t.visibleValueExists(table, fk.RemoteColumn, old, nc.RowID) {
				continue
			}
			if t.visibleValueExists(other, fk.Local.Name(), old, types.DummyRowID) {
				return errors.NewConstraint(
					"foreign key %q on %q still references %q.%s = %v",
					fk.Name, other.Name(), table.Name(), fk.RemoteColumn, old)
			}
		}
	}
	return nil
}

// visibleValueExists reports whether any visible row of the table other than
// `exclude` carries the value in the named column, probing an index when one
// leads on the column.
func (t *Transaction) visibleValueExists(table *schema.Table, column string, v interface{}, exclude types.RowID) bool {
	col, err := table.Column(column)
	if err != nil {
		return false
	}
	snap := (*snapshot)(t)

	for _, meta := range table.IndexesOn(col) {
		if len(meta.Columns) != 1 {
			continue
		}
		r := key.Only(key.Single(v))
		for _, row := range snap.ScanIndex(meta, &r) {
			if row.ID != exclude {
				return true
			}
		}
		return false
	}

	for _, row := range snap.TableRows(table) {
		if row.ID == exclude {
			continue
		}
		if types.Compare(row.Payload[column], v) == 0 {
			return true
		}
	}
	return false
}
