// Package merge holds the conflict policies used when two writes hit the same
// field of a knowledge unit. Every policy is a pure function of the two
// registers, so the same policy serves local upserts and merges of documents
// written elsewhere.
package merge

import (
	"bytes"

	"github.com/kailas-cloud/memcore/internal/domain/document"
)

// LastWriterWins keeps the register with the higher stamp. Equal stamps fall
// back to comparing the raw bytes so the result never depends on argument order.
type LastWriterWins struct{}

// Resolve implements document.Resolver.
func (LastWriterWins) Resolve(_ string, current, incoming document.Register) document.Register {
	if less(current, incoming) {
		return incoming
	}
	return current
}

// FirstWriterWins keeps the register with the lower stamp. Used for fields
// that are fixed once written.
type FirstWriterWins struct{}

// Resolve implements document.Resolver.
func (FirstWriterWins) Resolve(_ string, current, incoming document.Register) document.Register {
	if less(incoming, current) {
		return incoming
	}
	return current
}

// PerField routes each field to its own resolver, falling back to Default.
type PerField struct {
	Default document.Resolver
	Fields  map[string]document.Resolver
}

// Resolve implements document.Resolver.
func (p PerField) Resolve(field string, current, incoming document.Register) document.Register {
	if r, ok := p.Fields[field]; ok {
		return r.Resolve(field, current, incoming)
	}
	return p.Default.Resolve(field, current, incoming)
}

// Default is field-level last-writer-wins with the given fields pinned to
// their first write.
func Default(pinned ...string) document.Resolver {
	fields := make(map[string]document.Resolver, len(pinned))
	for _, f := range pinned {
		fields[f] = FirstWriterWins{}
	}
	return PerField{Default: LastWriterWins{}, Fields: fields}
}

func less(a, b document.Register) bool {
	if c := a.Stamp.Compare(b.Stamp); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.Value, b.Value) < 0
}
