package txn

import (
	"sort"

	"github.com/quern/quern/internal/index"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// snapshot implements exec.Source for one transaction: committed state from
// the cache and indices, overlaid with the transaction's own journal so
// reads observe pending writes. Committed structures are never mutated here.
type snapshot Transaction

// TableRows returns the visible rows of a table.
func (s *snapshot) TableRows(t *schema.Table) []*types.Row {
	txn := (*Transaction)(s)
	name := t.Name()

	base := txn.env.Cache.TableRows(name)
	out := make([]*types.Row, 0, len(base))
	for _, row := range base {
		if overlaid, ok, deleted := txn.journal.Get(name, row.ID); ok {
			if deleted {
				continue
			}
			out = append(out, overlaid)
			continue
		}
		out = append(out, row)
	}

	// Rows the journal created that committed state has never seen.
	for _, nc := range txn.journal.NetChanges() {
		if nc.Table == name && nc.Before == nil && nc.After != nil {
			out = append(out, nc.After)
		}
	}
	return out
}

// ScanRowIDs returns the visible rows in ascending row-id order.
func (s *snapshot) ScanRowIDs(t *schema.Table) []*types.Row {
	rows := s.TableRows(t)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// ScanIndex returns the visible rows whose index key falls inside r, in
// ascending key order. Journaled rows are merged in: updates may move a key
// into or out of the range, inserts are not in the committed index yet.
func (s *snapshot) ScanIndex(idx *schema.Index, r *key.Range) []*types.Row {
	txn := (*Transaction)(s)
	table := idx.Table()
	name := table.Name()

	physical, err := txn.env.Indices.Index(idx.FullName())
	if err != nil {
		return nil
	}

	type pair struct {
		k   key.Key
		row *types.Row
	}
	var pairs []pair
	seen := make(map[types.RowID]struct{})

	for _, id := range physical.GetRange(r) {
		seen[id] = struct{}{}
		if overlaid, ok, deleted := txn.journal.Get(name, id); ok {
			if deleted {
				continue
			}
			k := index.KeyFor(idx, overlaid.Payload)
			if r == nil || r.Contains(k) {
				pairs = append(pairs, pair{k, overlaid})
			}
			continue
		}
		if row := txn.env.Cache.Get(name, id); row != nil {
			pairs = append(pairs, pair{index.KeyFor(idx, row.Payload), row})
		}
	}

	for _, nc := range txn.journal.NetChanges() {
		if nc.Table != name || nc.After == nil {
			continue
		}
		if _, ok := seen[nc.RowID]; ok {
			continue
		}
		k := index.KeyFor(idx, nc.After.Payload)
		if r == nil || r.Contains(k) {
			pairs = append(pairs, pair{k, nc.After})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
	rows := make([]*types.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = p.row
	}
	return rows
}
