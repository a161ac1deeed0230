package index

import (
	"sort"

	"github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/key"
	"github.com/quern/quern/pkg/types"
)

// btreeOrder is the maximum number of keys per node before a split.
const btreeOrder = 32

// OrderedIndex is a B+-tree multimap from encoded keys to row ids. Lookups
// and mutations are logarithmic; leaves are linked for in-order range scans.
// Ids under one key are kept in insertion order, which is the tie-break
// contract for equal keys. Deletion is lazy: leaves are never merged, only
// emptied, which keeps removal simple without breaking scan order.
type OrderedIndex struct {
	name   string
	unique bool
	root   btreeNode
	first  *leafNode
	pairs  int
}

type btreeNode interface {
	leaf() bool
}

type leafNode struct {
	keys []key.Key
	vals [][]types.RowID
	next *leafNode
}

func (*leafNode) leaf() bool { return true }

// innerNode holds separator keys; child i covers keys below keys[i], the last
// child covers the rest. len(children) == len(keys)+1.
type innerNode struct {
	keys     []key.Key
	children []btreeNode
}

func (*innerNode) leaf() bool { return false }

// NewOrderedIndex creates an empty ordered index.
func NewOrderedIndex(name string, unique bool) *OrderedIndex {
	leaf := &leafNode{}
	return &OrderedIndex{name: name, unique: unique, root: leaf, first: leaf}
}

// Name returns the index name.
func (t *OrderedIndex) Name() string { return t.name }

// Add inserts an association, failing with CONSTRAINT when a unique index
// already holds the key.
func (t *OrderedIndex) Add(k key.Key, id types.RowID) error {
	if t.unique && t.ContainsKey(k) {
		return errors.NewConstraint("duplicate key on unique index %q", t.name)
	}
	t.insert(k, id)
	return nil
}

// Set replaces any existing association for k.
func (t *OrderedIndex) Set(k key.Key, id types.RowID) {
	t.Remove(k)
	t.insert(k, id)
}

func (t *OrderedIndex) insert(k key.Key, id types.RowID) {
	sep, right := t.insertInto(t.root, k, id)
	if right != nil {
		t.root = &innerNode{
			keys:     []key.Key{sep},
			children: []btreeNode{t.root, right},
		}
	}
	t.pairs++
}

// insertInto descends to the leaf for k and inserts. A non-nil returned node
// is a new right sibling to be linked under the parent with the returned
// separator.
func (t *OrderedIndex) insertInto(n btreeNode, k key.Key, id types.RowID) (key.Key, btreeNode) {
	if ln, ok := n.(*leafNode); ok {
		pos := sort.Search(len(ln.keys), func(i int) bool { return ln.keys[i] >= k })
		if pos < len(ln.keys) && ln.keys[pos] == k {
			ln.vals[pos] = append(ln.vals[pos], id)
			return "", nil
		}
		ln.keys = append(ln.keys, "")
		copy(ln.keys[pos+1:], ln.keys[pos:])
		ln.keys[pos] = k
		ln.vals = append(ln.vals, nil)
		copy(ln.vals[pos+1:], ln.vals[pos:])
		ln.vals[pos] = []types.RowID{id}

		if len(ln.keys) <= btreeOrder {
			return "", nil
		}
		return t.splitLeaf(ln)
	}

	in := n.(*innerNode)
	ci := sort.Search(len(in.keys), func(i int) bool { return in.keys[i] > k })
	sep, right := t.insertInto(in.children[ci], k, id)
	if right == nil {
		return "", nil
	}

	in.keys = append(in.keys, "")
	copy(in.keys[ci+1:], in.keys[ci:])
	in.keys[ci] = sep
	in.children = append(in.children, nil)
	copy(in.children[ci+2:], in.children[ci+1:])
	in.children[ci+1] = right

	if len(in.keys) <= btreeOrder {
		return "", nil
	}
	return t.splitInner(in)
}

func (t *OrderedIndex) splitLeaf(ln *leafNode) (key.Key, btreeNode) {
	mid := len(ln.keys) / 2
	right := &leafNode{
		keys: append([]key.Key(nil), ln.keys[mid:]...),
		vals: append([][]types.RowID(nil), ln.vals[mid:]...),
		next: ln.next,
	}
	ln.keys = ln.keys[:mid:mid]
	ln.vals = ln.vals[:mid:mid]
	ln.next = right
	return right.keys[0], right
}

func (t *OrderedIndex) splitInner(in *innerNode) (key.Key, btreeNode) {
	mid := len(in.keys) / 2
	sep := in.keys[mid]
	right := &innerNode{
		keys:     append([]key.Key(nil), in.keys[mid+1:]...),
		children: append([]btreeNode(nil), in.children[mid+1:]...),
	}
	in.keys = in.keys[:mid:mid]
	in.children = in.children[: mid+1 : mid+1]
	return sep, right
}

func (t *OrderedIndex) findLeaf(k key.Key) (*leafNode, int) {
	n := t.root
	for {
		in, ok := n.(*innerNode)
		if !ok {
			break
		}
		ci := sort.Search(len(in.keys), func(i int) bool { return in.keys[i] > k })
		n = in.children[ci]
	}
	ln := n.(*leafNode)
	pos := sort.Search(len(ln.keys), func(i int) bool { return ln.keys[i] >= k })
	return ln, pos
}

// Get returns the ids for k in insertion order.
func (t *OrderedIndex) Get(k key.Key) []types.RowID {
	ln, pos := t.findLeaf(k)
	if pos >= len(ln.keys) || ln.keys[pos] != k {
		return nil
	}
	return append([]types.RowID(nil), ln.vals[pos]...)
}

// ContainsKey reports whether k has at least one association.
func (t *OrderedIndex) ContainsKey(k key.Key) bool {
	ln, pos := t.findLeaf(k)
	return pos < len(ln.keys) && ln.keys[pos] == k
}

// Remove removes specific associations for k, or all of them when no ids are
// passed.
func (t *OrderedIndex) Remove(k key.Key, ids ...types.RowID) {
	ln, pos := t.findLeaf(k)
	if pos >= len(ln.keys) || ln.keys[pos] != k {
		return
	}
	before := len(ln.vals[pos])
	ln.vals[pos] = removeIDs(ln.vals[pos], ids)
	t.pairs -= before - len(ln.vals[pos])
	if len(ln.vals[pos]) == 0 {
		ln.keys = append(ln.keys[:pos], ln.keys[pos+1:]...)
		ln.vals = append(ln.vals[:pos], ln.vals[pos+1:]...)
	}
}

// GetRange returns row ids for keys inside r in ascending key order; ids
// under one key stay in insertion order. A nil range yields everything.
func (t *OrderedIndex) GetRange(r *key.Range) []types.RowID {
	var out []types.RowID
	t.scan(r, func(_ key.Key, ids []types.RowID) {
		out = append(out, ids...)
	})
	return out
}

// Cost counts the associations inside r without materializing them.
func (t *OrderedIndex) Cost(r *key.Range) int {
	if r == nil || r.IsAll() {
		return t.pairs
	}
	n := 0
	t.scan(r, func(_ key.Key, ids []types.RowID) {
		n += len(ids)
	})
	return n
}

// scan visits entries inside r in ascending key order.
func (t *OrderedIndex) scan(r *key.Range, visit func(k key.Key, ids []types.RowID)) {
	var ln *leafNode
	var pos int
	if r == nil || !r.HasLower {
		ln, pos = t.first, 0
	} else {
		ln, pos = t.findLeaf(r.Lower)
	}
	for ln != nil {
		for ; pos < len(ln.keys); pos++ {
			k := ln.keys[pos]
			if r != nil {
				if r.HasUpper && (k > r.Upper || (k == r.Upper && r.ExcludeUpper)) {
					return
				}
				if !r.Contains(k) {
					continue
				}
			}
			visit(k, ln.vals[pos])
		}
		ln, pos = ln.next, 0
	}
}

// Clear removes every association.
func (t *OrderedIndex) Clear() {
	leaf := &leafNode{}
	t.root = leaf
	t.first = leaf
	t.pairs = 0
}
