package unit

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/domain/document/merge"
)

// Resolver returns the conflict policy for knowledge unit fields: id and
// schemaVersion keep their first write, timestamps merge key by key and every
// other field is last-writer-wins.
func Resolver() document.Resolver {
	return merge.PerField{
		Default: merge.LastWriterWins{},
		Fields: map[string]document.Resolver{
			FieldID:            merge.FirstWriterWins{},
			FieldSchemaVersion: merge.FirstWriterWins{},
			FieldTimestamps:    timestampsResolver{},
		},
	}
}

// timestampsResolver keeps the last writer's timestamps object, with
// createdAt pinned to the earliest value either side holds and modifiedAt to
// the latest.
type timestampsResolver struct{}

func (timestampsResolver) Resolve(field string, current, incoming document.Register) document.Register {
	winner := merge.LastWriterWins{}.Resolve(field, current, incoming)

	cur, err := decodeObject(current.Value)
	if err != nil {
		return winner
	}
	in, err := decodeObject(incoming.Value)
	if err != nil {
		return winner
	}
	out, err := decodeObject(winner.Value)
	if err != nil {
		return winner
	}

	created, hasCreated := pickTime(cur[KeyCreatedAt], in[KeyCreatedAt], time.Time.Before)
	if hasCreated {
		out[KeyCreatedAt] = created
	}
	if modified, ok := pickTime(cur[KeyModifiedAt], in[KeyModifiedAt], time.Time.After); ok {
		out[KeyModifiedAt] = modified
		if hasCreated {
			c, _ := parseTime(created)
			if m, _ := parseTime(modified); m.Before(c) {
				out[KeyModifiedAt] = created
			}
		}
	}

	value, err := json.Marshal(out)
	if err != nil {
		return winner
	}
	return document.Register{Value: value, Stamp: winner.Stamp}
}

// pickTime returns the raw time x for which better(x, other) holds, ignoring
// malformed values. Equal instants keep the smaller encoding so argument order
// never matters.
func pickTime(a, b json.RawMessage, better func(time.Time, time.Time) bool) (json.RawMessage, bool) {
	ta, okA := parseTime(a)
	tb, okB := parseTime(b)
	switch {
	case okA && okB:
		if better(tb, ta) || (tb.Equal(ta) && string(b) < string(a)) {
			return b, true
		}
		return a, true
	case okA:
		return a, true
	case okB:
		return b, true
	default:
		return nil, false
	}
}
