package document

import (
	"bytes"
	"sort"
	"strings"
)

// Stamp orders writes: a Lamport counter with the writer id as tie-break.
type Stamp struct {
	Counter uint64
	Actor   string
}

// Compare returns -1, 0 or 1 ordering s against o.
func (s Stamp) Compare(o Stamp) int {
	switch {
	case s.Counter < o.Counter:
		return -1
	case s.Counter > o.Counter:
		return 1
	}
	return strings.Compare(s.Actor, o.Actor)
}

// Register is one top-level field of a record: raw JSON plus the stamp of the
// write that produced it.
type Register struct {
	Value []byte
	Stamp Stamp
}

// Equal reports whether both registers carry the same stamp and value.
func (r Register) Equal(o Register) bool {
	return r.Stamp == o.Stamp && bytes.Equal(r.Value, o.Value)
}

// Record is a stored unit: field name -> register.
type Record map[string]Register

// Values returns the raw field values of the record.
func (r Record) Values() map[string][]byte {
	m := make(map[string][]byte, len(r))
	for k, reg := range r {
		m[k] = reg.Value
	}
	return m
}

// Clone returns a shallow copy. Register values are never mutated in place.
func (r Record) Clone() Record {
	c := make(Record, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Index is a derived lookup: key -> ids, each id list sorted ascending.
type Index map[string][]string

// Resolver decides the winning register when two writes hit the same field.
// Implementations must be pure, commutative and idempotent.
type Resolver interface {
	Resolve(field string, current, incoming Register) Register
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(field string, current, incoming Register) Register

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(field string, current, incoming Register) Register {
	return f(field, current, incoming)
}

// Document is the canonical state: every record plus the derived indexes.
// A Document handed out by a store is committed and must be treated as
// read-only; mutations go through Begin/Commit which copy on write.
type Document struct {
	actor   string
	clock   uint64
	units   map[string]Record
	indexes map[string]Index
}

// New creates an empty document owned by actor.
func New(actor string) *Document {
	return &Document{
		actor:   actor,
		units:   make(map[string]Record),
		indexes: make(map[string]Index),
	}
}

// Reconstruct creates a Document from decoded state without validation.
func Reconstruct(actor string, clock uint64, units map[string]Record, indexes map[string]Index) *Document {
	if units == nil {
		units = make(map[string]Record)
	}
	if indexes == nil {
		indexes = make(map[string]Index)
	}
	return &Document{actor: actor, clock: clock, units: units, indexes: indexes}
}

// Actor returns the id of the writer that owns this document.
func (d *Document) Actor() string { return d.actor }

// Clock returns the highest counter seen by this document.
func (d *Document) Clock() uint64 { return d.clock }

// Len returns the number of records.
func (d *Document) Len() int { return len(d.units) }

// Record returns the record for id.
func (d *Document) Record(id string) (Record, bool) {
	r, ok := d.units[id]
	return r, ok
}

// IDs returns all record ids, sorted.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.units))
	for id := range d.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Index returns the named index, nil if absent.
func (d *Document) Index(name string) Index { return d.indexes[name] }

// IndexNames returns the names of all indexes, sorted.
func (d *Document) IndexNames() []string {
	names := make([]string, 0, len(d.indexes))
	for n := range d.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the ids stored under key in the named index.
func (d *Document) Lookup(name, key string) []string {
	return d.indexes[name][key]
}
