package document

import (
	"sort"
)

// Op is a single field write. Applying the same set of ops in any order, any
// number of times, yields the same document.
type Op struct {
	UnitID   string
	Field    string
	Register Register
}

// Change describes a record touched by a transaction.
type Change struct {
	ID      string
	Prev    Record
	Existed bool
}

// Txn is a copy-on-write mutation of a Document. The base document is never
// modified; Commit returns a new one.
type Txn struct {
	base     *Document
	resolver Resolver
	clock    uint64
	units    map[string]Record
	indexes  map[string]Index
	ownRec   map[string]bool
	ownIdx   map[string]bool
	changes  map[string]Change
}

// Begin starts a transaction on d resolving conflicts with r.
func (d *Document) Begin(r Resolver) *Txn {
	units := make(map[string]Record, len(d.units)+1)
	for k, v := range d.units {
		units[k] = v
	}
	indexes := make(map[string]Index, len(d.indexes))
	for k, v := range d.indexes {
		indexes[k] = v
	}
	return &Txn{
		base:     d,
		resolver: r,
		clock:    d.clock,
		units:    units,
		indexes:  indexes,
		ownRec:   make(map[string]bool),
		ownIdx:   make(map[string]bool),
		changes:  make(map[string]Change),
	}
}

// Record returns the record for id as seen inside the transaction.
func (t *Txn) Record(id string) (Record, bool) {
	r, ok := t.units[id]
	return r, ok
}

// Tick advances the clock and returns a fresh local stamp.
func (t *Txn) Tick() Stamp {
	t.clock++
	return Stamp{Counter: t.clock, Actor: t.base.actor}
}

// PutLocal writes every given field of id under one new local stamp and
// returns the ops it applied.
func (t *Txn) PutLocal(id string, fields map[string][]byte) []Op {
	stamp := t.Tick()
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	ops := make([]Op, 0, len(names))
	for _, name := range names {
		op := Op{UnitID: id, Field: name, Register: Register{Value: fields[name], Stamp: stamp}}
		t.Apply(op)
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		// A record with no fields still exists.
		t.record(id)
	}
	return ops
}

// Apply resolves op against the current register and reports whether the
// stored value changed.
func (t *Txn) Apply(op Op) bool {
	if op.Register.Stamp.Counter > t.clock {
		t.clock = op.Register.Stamp.Counter
	}
	rec := t.record(op.UnitID)
	cur, ok := rec[op.Field]
	if !ok {
		rec[op.Field] = op.Register
		return true
	}
	next := t.resolver.Resolve(op.Field, cur, op.Register)
	if next.Equal(cur) {
		return false
	}
	rec[op.Field] = next
	return true
}

// MergeFrom applies every register of remote. Remote indexes are ignored,
// they are derived state.
func (t *Txn) MergeFrom(remote *Document) {
	if remote.clock > t.clock {
		t.clock = remote.clock
	}
	for _, id := range remote.IDs() {
		rec := remote.units[id]
		fields := make([]string, 0, len(rec))
		for f := range rec {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		if len(fields) == 0 {
			t.record(id)
			continue
		}
		for _, f := range fields {
			t.Apply(Op{UnitID: id, Field: f, Register: rec[f]})
		}
	}
}

// Changes returns the records touched so far, ordered by id.
func (t *Txn) Changes() []Change {
	out := make([]Change, 0, len(t.changes))
	for _, c := range t.changes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IndexAdd inserts id under key in the named index. No-op if present.
func (t *Txn) IndexAdd(name, key, id string) {
	idx := t.index(name)
	ids := idx[key]
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return
	}
	next := make([]string, 0, len(ids)+1)
	next = append(next, ids[:i]...)
	next = append(next, id)
	next = append(next, ids[i:]...)
	idx[key] = next
}

// IndexRemove deletes id from key in the named index. Empty keys are dropped.
func (t *Txn) IndexRemove(name, key, id string) {
	idx := t.index(name)
	ids := idx[key]
	i := sort.SearchStrings(ids, id)
	if i >= len(ids) || ids[i] != id {
		return
	}
	if len(ids) == 1 {
		delete(idx, key)
		return
	}
	next := make([]string, 0, len(ids)-1)
	next = append(next, ids[:i]...)
	next = append(next, ids[i+1:]...)
	idx[key] = next
}

// ReplaceIndex swaps the named index for a freshly built one.
func (t *Txn) ReplaceIndex(name string, idx Index) {
	t.indexes[name] = idx
	t.ownIdx[name] = true
}

// Commit returns the new document. The transaction must not be used afterwards.
func (t *Txn) Commit() *Document {
	return &Document{
		actor:   t.base.actor,
		clock:   t.clock,
		units:   t.units,
		indexes: t.indexes,
	}
}

func (t *Txn) record(id string) Record {
	if t.ownRec[id] {
		return t.units[id]
	}
	prev, existed := t.base.units[id]
	t.changes[id] = Change{ID: id, Prev: prev, Existed: existed}
	var rec Record
	if existed {
		rec = prev.Clone()
	} else {
		rec = make(Record)
	}
	t.units[id] = rec
	t.ownRec[id] = true
	return rec
}

func (t *Txn) index(name string) Index {
	if t.ownIdx[name] {
		return t.indexes[name]
	}
	prev := t.indexes[name]
	idx := make(Index, len(prev)+1)
	for k, v := range prev {
		idx[k] = v
	}
	t.indexes[name] = idx
	t.ownIdx[name] = true
	return idx
}
