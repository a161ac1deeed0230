package relation

import (
	"sort"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/pkg/types"
)

// Relation is an ordered sequence of entries plus the set of source tables
// its attributes originate from. Relations are immutable after construction;
// operators produce new relations.
type Relation struct {
	entries []*Entry
	tables  []string
}

// empty is the shared empty-relation singleton; any zero-input set operation
// returns it.
var empty = &Relation{}

// Empty returns the shared empty relation.
func Empty() *Relation { return empty }

// New constructs a relation over the given entries and source tables.
func New(entries []*Entry, tables []string) *Relation {
	return &Relation{entries: entries, tables: normalizeTables(tables)}
}

// FromRows wraps rows into fresh entries. Entries are prefix-applied iff the
// relation spans more than one table.
func FromRows(rows []*types.Row, tables []string) *Relation {
	prefixed := len(tables) > 1
	entries := make([]*Entry, len(rows))
	for i, row := range rows {
		entries[i] = NewEntry(row, prefixed)
	}
	return New(entries, tables)
}

// Entries returns the entries in order.
func (r *Relation) Entries() []*Entry { return r.entries }

// Len returns the number of entries.
func (r *Relation) Len() int { return len(r.entries) }

// Tables returns the sorted source-table names.
func (r *Relation) Tables() []string { return r.tables }

// PrefixApplied reports whether entries address attributes as
// (table, column).
func (r *Relation) PrefixApplied() bool { return len(r.tables) > 1 }

// IsCompatible reports whether both relations draw from the same table set,
// the precondition for set operations.
func (r *Relation) IsCompatible(other *Relation) bool {
	if len(r.tables) != len(other.tables) {
		return false
	}
	for i := range r.tables {
		if r.tables[i] != other.tables[i] {
			return false
		}
	}
	return true
}

// Union returns entries present in any input, deduped by entry id, in first-
// occurrence order. Zero inputs yield the shared empty relation.
func Union(relations []*Relation) (*Relation, error) {
	if len(relations) == 0 {
		return empty, nil
	}
	if err := checkCompatible(relations); err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{})
	var out []*Entry
	for _, rel := range relations {
		for _, e := range rel.entries {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return New(out, relations[0].tables), nil
}

// Intersect returns the entries of the first input whose entry id appears in
// every input. Zero inputs yield the shared empty relation.
func Intersect(relations []*Relation) (*Relation, error) {
	if len(relations) == 0 {
		return empty, nil
	}
	if err := checkCompatible(relations); err != nil {
		return nil, err
	}
	counts := make(map[uint64]int)
	for _, rel := range relations[1:] {
		for _, e := range rel.entries {
			counts[e.ID]++
		}
	}
	need := len(relations) - 1
	var out []*Entry
	for _, e := range relations[0].entries {
		if counts[e.ID] >= need {
			out = append(out, e)
		}
	}
	return New(out, relations[0].tables), nil
}

// Except returns the entries of the first input absent from every other
// input, by entry id. Zero inputs yield the shared empty relation.
func Except(relations []*Relation) (*Relation, error) {
	if len(relations) == 0 {
		return empty, nil
	}
	if err := checkCompatible(relations); err != nil {
		return nil, err
	}
	drop := make(map[uint64]struct{})
	for _, rel := range relations[1:] {
		for _, e := range rel.entries {
			drop[e.ID] = struct{}{}
		}
	}
	var out []*Entry
	for _, e := range relations[0].entries {
		if _, ok := drop[e.ID]; !ok {
			out = append(out, e)
		}
	}
	return New(out, relations[0].tables), nil
}

func checkCompatible(relations []*Relation) error {
	for _, rel := range relations[1:] {
		if !relations[0].IsCompatible(rel) {
			return errors.NewUnknown(nil,
				"set operation over incompatible relations: %v vs %v",
				relations[0].tables, rel.tables)
		}
	}
	return nil
}

func normalizeTables(tables []string) []string {
	if len(tables) == 0 {
		return nil
	}
	out := append([]string(nil), tables...)
	sort.Strings(out)
	dedup := out[:1]
	for _, t := range out[1:] {
		if t != dedup[len(dedup)-1] {
			dedup = append(dedup, t)
		}
	}
	return dedup
}
