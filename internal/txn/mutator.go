package txn

import (
	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// mutator implements exec.Mutator: constraint checks against the visible
// snapshot, then journaling. Nothing touches committed state until commit.
type mutator Transaction

// InsertRow validates and journals a row creation.
func (m *mutator) InsertRow(t *schema.Table, payload map[string]interface{}, allowReplace bool) (*types.Row, error) {
	txn := (*Transaction)(m)

	if err := t.CheckRow(payload); err != nil {
		return nil, err
	}
	if allowReplace && t.PrimaryKey() == nil {
		return nil, errors.NewConstraint(
			"insert-or-replace requires a primary key on table %q", t.Name())
	}

	if pk := t.PrimaryKey(); pk != nil {
		k := index.KeyFor(pk, payload)
		if existing := m.lookupByKey(pk, k); existing != nil {
			if !allowReplace {
				return nil, errors.NewConstraint(
					"duplicate primary key on table %q", t.Name())
			}
			replacement := types.NewRow(existing.ID, payload)
			if err := m.checkUniqueIndexes(t, payload, existing.ID); err != nil {
				return nil, err
			}
			txn.journal.Update(t.Name(), existing, replacement)
			return replacement, nil
		}
	}

	if err := m.checkUniqueIndexes(t, payload, types.DummyRowID); err != nil {
		return nil, err
	}

	row := types.NewRow(txn.allocRowID(t), payload)
	txn.journal.Insert(t.Name(), row)
	return row, nil
}

// UpdateRow validates and journals a payload replacement.
func (m *mutator) UpdateRow(t *schema.Table, before *types.Row, payload map[string]interface{}) (*types.Row, error) {
	txn := (*Transaction)(m)

	if err := t.CheckRow(payload); err != nil {
		return nil, err
	}
	if pk := t.PrimaryKey(); pk != nil {
		newKey := index.KeyFor(pk, payload)
		if newKey != index.KeyFor(pk, before.Payload) {
			if existing := m.lookupByKey(pk, newKey); existing != nil && existing.ID != before.ID {
				return nil, errors.NewConstraint(
					"duplicate primary key on table %q", t.Name())
			}
		}
	}
	if err := m.checkUniqueIndexes(t, payload, before.ID); err != nil {
		return nil, err
	}

	after := types.NewRow(before.ID, payload)
	txn.journal.Update(t.Name(), before, after)
	return after, nil
}

// DeleteRow journals a row removal. Referencing foreign keys are validated
// at commit.
func (m *mutator) DeleteRow(t *schema.Table, before *types.Row) error {
	txn := (*Transaction)(m)
	txn.journal.Delete(t.Name(), before)
	return nil
}

// lookupByKey probes a unique index through the snapshot overlay.
func (m *mutator) lookupByKey(idx *schema.Index, k key.Key) *types.Row {
	r := key.Only(k)
	rows := (*snapshot)(m).ScanIndex(idx, &r)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// checkUniqueIndexes rejects a payload colliding with a visible row other
// than self on any unique secondary index.
func (m *mutator) checkUniqueIndexes(t *schema.Table, payload map[string]interface{}, self types.RowID) error {
	for _, meta := range t.Indexes() {
		if !meta.Unique || meta.PrimaryKey {
			continue
		}
		k := index.KeyFor(meta, payload)
		r := key.Only(k)
		for _, row := range (*snapshot)(m).ScanIndex(meta, &r) {
			if row.ID != self {
				return errors.NewConstraint(
					"duplicate key on unique index %q", meta.FullName())
			}
		}
	}
	return nil
}

// allocRowID hands out the next row id of a table, seeded from the shared
// high-water mark. The caller holds the table's writer lock, so no other
// transaction allocates concurrently.
func (t *Transaction) allocRowID(tbl *schema.Table) types.RowID {
	name := tbl.Name()
	next, ok := t.nextRowID[name]
	if !ok {
		next = t.env.Meta.HighWaterMarks[name]
	}
	next++
	t.nextRowID[name] = next
	return next
}
