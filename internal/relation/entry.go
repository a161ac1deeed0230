// Package relation provides the tuple stream flowing between physical
// operators: relations of entries, prefix-aware attribute access, and the
// set operations the planner relies on.
package relation

import (
	"sync/atomic"

	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// entryCounter allocates entry ids strictly increasing within the process.
// Entry ids drive dedup in set operations and are never persisted.
var entryCounter atomic.Uint64

// Entry wraps one row inside a relation. When the relation spans more than
// one table the entry is prefix-applied: its payload is keyed first by table
// name, then by column name.
type Entry struct {
	// ID is the process-unique entry id used to dedupe in set operations.
	ID uint64

	// Row is the wrapped row. Joined entries carry a synthetic row with
	// DummyRowID.
	Row *types.Row

	prefixApplied bool
}

// NewEntry wraps a row into a fresh entry.
func NewEntry(row *types.Row, prefixApplied bool) *Entry {
	return &Entry{
		ID:            entryCounter.Add(1),
		Row:           row,
		prefixApplied: prefixApplied,
	}
}

// PrefixApplied reports whether attributes are addressed as (table, column).
func (e *Entry) PrefixApplied() bool { return e.prefixApplied }

// Field reads the value of a column. An alias, when set, short-circuits to a
// flat payload slot before any prefix resolution.
func (e *Entry) Field(col *schema.Column) interface{} {
	if alias := col.Alias(); alias != "" {
		if v, ok := e.Row.Payload[alias]; ok {
			return v
		}
	}
	if e.prefixApplied {
		sub, ok := e.Row.Payload[col.Table().Name()].(map[string]interface{})
		if !ok {
			return nil
		}
		return sub[col.Name()]
	}
	return e.Row.Payload[col.Name()]
}

// SetField writes the value of a column. Alias assignment always writes to a
// flat slot; non-aliased writes go through the prefix map when applied.
func (e *Entry) SetField(col *schema.Column, v interface{}) {
	if alias := col.Alias(); alias != "" {
		e.Row.Payload[alias] = v
		return
	}
	if e.prefixApplied {
		sub, ok := e.Row.Payload[col.Table().Name()].(map[string]interface{})
		if !ok {
			sub = make(map[string]interface{})
			e.Row.Payload[col.Table().Name()] = sub
		}
		sub[col.Name()] = v
		return
	}
	e.Row.Payload[col.Name()] = v
}

// CombineEntries merges a left and right entry into a prefix-applied entry
// whose payload is a table-keyed map carrying both sides. A side that is
// already prefixed contributes its prefixes verbatim; otherwise its payload
// is inserted under its single source-table name. The synthetic row is never
// persisted.
func CombineEntries(left *Entry, leftTables []string, right *Entry, rightTables []string) *Entry {
	payload := make(map[string]interface{}, len(leftTables)+len(rightTables))
	copySide(payload, left, leftTables)
	copySide(payload, right, rightTables)
	return NewEntry(types.NewRow(types.DummyRowID, payload), true)
}

func copySide(payload map[string]interface{}, e *Entry, tables []string) {
	if e.prefixApplied {
		for _, t := range tables {
			if sub, ok := e.Row.Payload[t]; ok {
				payload[t] = sub
			}
		}
		return
	}
	payload[tables[0]] = e.Row.Payload
}
