package memcore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
)

// UnitService manages knowledge units. Units cross the SDK boundary as raw
// JSON objects so callers keep fields the server does not know about.
type UnitService struct {
	svc unitUseCase
	obs *observer
}

// Create stores a new unit. The id, schemaVersion and timestamps are assigned
// by the store; any supplied values are replaced.
func (s *UnitService) Create(ctx context.Context, draft json.RawMessage) (out json.RawMessage, err error) {
	start := time.Now()
	defer func() { s.obs.observe("create", start, err) }()

	u, err := toInternalUnit(draft)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	created, err := s.svc.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return fromInternalUnit(created)
}

// Get returns the unit with id.
func (s *UnitService) Get(ctx context.Context, id string) (out json.RawMessage, err error) {
	start := time.Now()
	defer func() { s.obs.observe("get", start, err) }()

	u, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return fromInternalUnit(u)
}

// Update replaces every top-level field present in patch. Absent fields are
// kept.
func (s *UnitService) Update(ctx context.Context, id string, patch json.RawMessage) (out json.RawMessage, err error) {
	start := time.Now()
	defer func() { s.obs.observe("update", start, err) }()

	p, err := toInternalUnit(patch)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	u, err := s.svc.Update(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	return fromInternalUnit(u)
}

// ListByType returns the ids of units with the given base type, sorted.
func (s *UnitService) ListByType(ctx context.Context, typ string) (ids []string, err error) {
	start := time.Now()
	defer func() { s.obs.observe("list_by_type", start, err) }()

	ids, err = s.svc.ListByType(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("list by type: %w", err)
	}
	return ids, nil
}

func toInternalUnit(raw json.RawMessage) (domunit.Unit, error) {
	u, err := domunit.Parse(raw)
	if err != nil {
		return domunit.Unit{}, fmt.Errorf("parse unit: %w", err)
	}
	return u, nil
}

func fromInternalUnit(u domunit.Unit) (json.RawMessage, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode unit: %w", err)
	}
	return b, nil
}
