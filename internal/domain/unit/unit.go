package unit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/buger/jsonparser"

	"github.com/kailas-cloud/memcore/internal/domain"
)

// SchemaVersion is the format tag stamped on every unit at creation.
const SchemaVersion = "2.1.0"

// Top-level field names of a knowledge unit.
const (
	FieldID            = "id"
	FieldSchemaVersion = "schemaVersion"
	FieldTimestamps    = "timestamps"
	FieldSource        = "source"
	FieldAnalysis      = "analysis"
	FieldUserTags      = "userTags"
	FieldAutoTags      = "autoTags"
	FieldCustomData    = "customData"
	FieldRawContent    = "rawContent"
	FieldBinary        = "binary"
	FieldRelations     = "relations"
)

// UnknownType is the classification used when analysis.core.baseType is absent.
const UnknownType = "unknown"

// Unit is a knowledge unit: a JSON object kept as raw top-level fields.
// Field presence is significant, an absent field is never the same as null.
type Unit struct {
	fields map[string]json.RawMessage
}

// Parse decodes a JSON object into a Unit. Unknown fields are kept verbatim.
func Parse(data []byte) (Unit, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Unit{}, fmt.Errorf("knowledge unit must be a JSON object: %w", domain.ErrValidation)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Unit{}, fmt.Errorf("decode knowledge unit: %v: %w", err, domain.ErrValidation)
	}
	return Unit{fields: fields}, nil
}

// Reconstruct creates a Unit from raw fields without validation (storage hydration).
func Reconstruct(fields map[string][]byte) Unit {
	m := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		m[k] = cloneBytes(v)
	}
	return Unit{fields: m}
}

// ValidateDraft checks the minimum a create request must carry:
// analysis.core.baseType and a source record.
func ValidateDraft(u Unit) error {
	if BaseTypeOf(u.fields[FieldAnalysis]) == "" {
		return fmt.Errorf("analysis.core.baseType is required: %w", domain.ErrValidation)
	}
	src, ok := u.fields[FieldSource]
	if !ok || !isObject(src) {
		return fmt.Errorf("source is required: %w", domain.ErrValidation)
	}
	return nil
}

// IsZero reports whether the unit has no fields.
func (u Unit) IsZero() bool { return len(u.fields) == 0 }

// ID returns the unit identifier, or "" if absent or not a string.
func (u Unit) ID() string { return u.stringField(FieldID) }

// SchemaVersion returns the format tag, or "" if absent.
func (u Unit) SchemaVersion() string { return u.stringField(FieldSchemaVersion) }

// BaseType returns analysis.core.baseType, or "" if absent.
func (u Unit) BaseType() string { return BaseTypeOf(u.fields[FieldAnalysis]) }

// Has reports whether the top-level field is present.
func (u Unit) Has(name string) bool {
	_, ok := u.fields[name]
	return ok
}

// Field returns the raw JSON of a top-level field.
func (u Unit) Field(name string) (json.RawMessage, bool) {
	v, ok := u.fields[name]
	return v, ok
}

// Names returns the present top-level field names, sorted.
func (u Unit) Names() []string {
	names := make([]string, 0, len(u.fields))
	for k := range u.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RawFields returns a copy of the fields as raw bytes.
func (u Unit) RawFields() map[string][]byte {
	m := make(map[string][]byte, len(u.fields))
	for k, v := range u.fields {
		m[k] = cloneBytes(v)
	}
	return m
}

// With returns a copy with the field set to the JSON encoding of v.
func (u Unit) With(name string, v any) (Unit, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Unit{}, fmt.Errorf("encode field %s: %w", name, err)
	}
	return u.WithRaw(name, raw), nil
}

// WithRaw returns a copy with the field set to raw JSON.
func (u Unit) WithRaw(name string, raw json.RawMessage) Unit {
	c := u.clone()
	c.fields[name] = cloneBytes(raw)
	return c
}

// Without returns a copy with the field removed.
func (u Unit) Without(name string) Unit {
	c := u.clone()
	delete(c.fields, name)
	return c
}

// MarshalJSON encodes the unit as a JSON object with sorted keys.
func (u Unit) MarshalJSON() ([]byte, error) {
	if u.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.fields)
}

// UnmarshalJSON decodes a JSON object into the unit.
func (u *Unit) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// BaseTypeOf extracts core.baseType from a raw analysis value without decoding it.
func BaseTypeOf(analysis []byte) string {
	if len(analysis) == 0 {
		return ""
	}
	t, err := jsonparser.GetString(analysis, "core", "baseType")
	if err != nil {
		return ""
	}
	return t
}

// ClassOf returns the index classification of a raw analysis value.
func ClassOf(analysis []byte) string {
	if t := BaseTypeOf(analysis); t != "" {
		return t
	}
	return UnknownType
}

func (u Unit) stringField(name string) string {
	raw, ok := u.fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (u Unit) clone() Unit {
	m := make(map[string]json.RawMessage, len(u.fields)+1)
	for k, v := range u.fields {
		m[k] = v
	}
	return Unit{fields: m}
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
