// Package index maintains derived lookups stored inside the canonical document.
// An index is never authoritative: it can always be rebuilt from the records.
package index

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/domain/unit"
)

// ByType is the name of the classification type index.
const ByType = "byType"

// KeyFunc derives the index key of a record.
type KeyFunc func(r document.Record) string

// Manager keeps one named index in sync with the records of a document.
type Manager struct {
	name string
	key  KeyFunc
}

// New creates a manager for an index named name keyed by key.
func New(name string, key KeyFunc) *Manager {
	return &Manager{name: name, key: key}
}

// NewTypeIndex creates the analysis.core.baseType -> ids index.
func NewTypeIndex() *Manager {
	return New(ByType, func(r document.Record) string {
		return unit.ClassOf(r[unit.FieldAnalysis].Value)
	})
}

// Name returns the index name.
func (m *Manager) Name() string { return m.name }

// OnUnitWritten moves id to the bucket of its new key. It must run once per
// written record, after the record is installed in txn.
func (m *Manager) OnUnitWritten(txn *document.Txn, c document.Change) {
	rec, ok := txn.Record(c.ID)
	if !ok {
		return
	}
	next := m.key(rec)
	if c.Existed {
		if prev := m.key(c.Prev); prev != next {
			txn.IndexRemove(m.name, prev, c.ID)
		}
	}
	txn.IndexAdd(m.name, next, c.ID)
}

// Lookup returns the ids under key. Never nil.
func (m *Manager) Lookup(d *document.Document, key string) []string {
	ids := d.Lookup(m.name, key)
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Build derives the full index from the records of d.
func (m *Manager) Build(d *document.Document) document.Index {
	idx := make(document.Index)
	for _, id := range d.IDs() {
		rec, _ := d.Record(id)
		k := m.key(rec)
		idx[k] = append(idx[k], id)
	}
	for _, ids := range idx {
		sort.Strings(ids)
	}
	return idx
}

// Verify reports whether the stored index equals the one derived from records.
func (m *Manager) Verify(d *document.Document) error {
	want := m.Build(d)
	got := d.Index(m.name)
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("index %s out of sync with records", m.name)
	}
	return nil
}

// Rebuild replaces the stored index inside txn with a freshly derived one.
func (m *Manager) Rebuild(txn *document.Txn, d *document.Document) {
	txn.ReplaceIndex(m.name, m.Build(d))
}
