package index

import (
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/pkg/types"
)

// HashIndex is a hash map from encoded keys to row ids with constant-time
// Get/Set/Remove. Keys are bucketed by their murmur3 sum; buckets chain
// entries that collide on the hash. Range scans sort the matching keys on
// demand, so they are linear in the index size and reserved for full scans.
type HashIndex struct {
	name    string
	unique  bool
	buckets map[uint64][]*hashEntry
	pairs   int
}

type hashEntry struct {
	k   key.Key
	ids []types.RowID
}

// NewHashIndex creates an empty hash index.
func NewHashIndex(name string, unique bool) *HashIndex {
	return &HashIndex{
		name:    name,
		unique:  unique,
		buckets: make(map[uint64][]*hashEntry),
	}
}

// Name returns the index name.
func (h *HashIndex) Name() string { return h.name }

func hashKey(k key.Key) uint64 {
	return murmur3.Sum64([]byte(k))
}

func (h *HashIndex) find(k key.Key) *hashEntry {
	for _, e := range h.buckets[hashKey(k)] {
		if e.k == k {
			return e
		}
	}
	return nil
}

// Add inserts an association, failing with CONSTRAINT when a unique index
// already holds the key.
func (h *HashIndex) Add(k key.Key, id types.RowID) error {
	e := h.find(k)
	if e != nil {
		if h.unique {
			return errors.NewConstraint("duplicate key on unique index %q", h.name)
		}
		e.ids = append(e.ids, id)
		h.pairs++
		return nil
	}
	bucket := hashKey(k)
	h.buckets[bucket] = append(h.buckets[bucket], &hashEntry{k: k, ids: []types.RowID{id}})
	h.pairs++
	return nil
}

// Set replaces any existing association for k.
func (h *HashIndex) Set(k key.Key, id types.RowID) {
	if e := h.find(k); e != nil {
		h.pairs -= len(e.ids) - 1
		e.ids = append(e.ids[:0], id)
		return
	}
	bucket := hashKey(k)
	h.buckets[bucket] = append(h.buckets[bucket], &hashEntry{k: k, ids: []types.RowID{id}})
	h.pairs++
}

// Get returns the ids for k in insertion order.
func (h *HashIndex) Get(k key.Key) []types.RowID {
	e := h.find(k)
	if e == nil {
		return nil
	}
	return append([]types.RowID(nil), e.ids...)
}

// ContainsKey reports whether k has at least one association.
func (h *HashIndex) ContainsKey(k key.Key) bool {
	return h.find(k) != nil
}

// Remove removes specific associations for k, or all of them when no ids are
// passed.
func (h *HashIndex) Remove(k key.Key, ids ...types.RowID) {
	bucket := hashKey(k)
	entries := h.buckets[bucket]
	for i, e := range entries {
		if e.k != k {
			continue
		}
		before := len(e.ids)
		e.ids = removeIDs(e.ids, ids)
		h.pairs -= before - len(e.ids)
		if len(e.ids) == 0 {
			h.buckets[bucket] = append(entries[:i], entries[i+1:]...)
			if len(h.buckets[bucket]) == 0 {
				delete(h.buckets, bucket)
			}
		}
		return
	}
}

// GetRange returns row ids for keys inside r in ascending key order. The
// hash shape has no key order, so matching keys are collected and sorted.
func (h *HashIndex) GetRange(r *key.Range) []types.RowID {
	entries := h.entriesInRange(r)
	var out []types.RowID
	for _, e := range entries {
		out = append(out, e.ids...)
	}
	return out
}

// Cost counts the associations inside r.
func (h *HashIndex) Cost(r *key.Range) int {
	if r == nil || r.IsAll() {
		return h.pairs
	}
	n := 0
	for _, entries := range h.buckets {
		for _, e := range entries {
			if r.Contains(e.k) {
				n += len(e.ids)
			}
		}
	}
	return n
}

// Clear removes every association.
func (h *HashIndex) Clear() {
	h.buckets = make(map[uint64][]*hashEntry)
	h.pairs = 0
}

func (h *HashIndex) entriesInRange(r *key.Range) []*hashEntry {
	var entries []*hashEntry
	for _, chain := range h.buckets {
		for _, e := range chain {
			if r == nil || r.Contains(e.k) {
				entries = append(entries, e)
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })
	return entries
}
