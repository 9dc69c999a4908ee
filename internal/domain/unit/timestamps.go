package unit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/memcore/internal/domain"
)

// Keys of the timestamps object owned by the store.
const (
	KeyCreatedAt  = "createdAt"
	KeyModifiedAt = "modifiedAt"
)

// Timestamps holds the server-owned times of a unit.
type Timestamps struct {
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// FormatTime renders t the way timestamps are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Timestamps parses createdAt and modifiedAt.
func (u Unit) Timestamps() (Timestamps, error) {
	raw, ok := u.fields[FieldTimestamps]
	if !ok {
		return Timestamps{}, fmt.Errorf("timestamps missing: %w", domain.ErrValidation)
	}
	m, err := decodeObject(raw)
	if err != nil {
		return Timestamps{}, err
	}
	created, ok := parseTime(m[KeyCreatedAt])
	if !ok {
		return Timestamps{}, fmt.Errorf("timestamps.createdAt missing or malformed: %w", domain.ErrValidation)
	}
	modified, ok := parseTime(m[KeyModifiedAt])
	if !ok {
		return Timestamps{}, fmt.Errorf("timestamps.modifiedAt missing or malformed: %w", domain.ErrValidation)
	}
	return Timestamps{CreatedAt: created, ModifiedAt: modified}, nil
}

// StampCreated returns the timestamps object of a new unit: the writer's
// optional keys plus createdAt = modifiedAt = now.
func StampCreated(raw json.RawMessage, now time.Time) (json.RawMessage, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	ts := quoteTime(now)
	m[KeyCreatedAt] = ts
	m[KeyModifiedAt] = ts
	return json.Marshal(m)
}

// MergeTimestamps combines the stored timestamps (prev, may be nil) with the
// incoming ones (may be nil). createdAt is pinned once set and modifiedAt is
// always max(now, createdAt). Other keys follow the incoming value.
func MergeTimestamps(prev, incoming json.RawMessage, now time.Time) (json.RawMessage, error) {
	out, err := decodeObject(prev)
	if err != nil {
		return nil, fmt.Errorf("stored timestamps: %w", err)
	}
	in, err := decodeObject(incoming)
	if err != nil {
		return nil, err
	}
	_, pinned := parseTime(out[KeyCreatedAt])
	for k, v := range in {
		if k == KeyModifiedAt || (k == KeyCreatedAt && pinned) {
			continue
		}
		out[k] = v
	}

	created, ok := parseTime(out[KeyCreatedAt])
	if !ok {
		created = now
		out[KeyCreatedAt] = quoteTime(created)
	}
	modified := now
	if modified.Before(created) {
		modified = created
	}
	out[KeyModifiedAt] = quoteTime(modified)
	return json.Marshal(out)
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	m := make(map[string]json.RawMessage)
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if !isObject(raw) {
		return nil, fmt.Errorf("timestamps must be an object: %w", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode timestamps: %v: %w", err, domain.ErrValidation)
	}
	return m, nil
}

func parseTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func quoteTime(t time.Time) json.RawMessage {
	b, _ := json.Marshal(FormatTime(t))
	return b
}
