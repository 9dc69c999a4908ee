package unit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/memcore/internal/domain"
	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
)

// Service handles knowledge unit creation, updates and lookups.
type Service struct {
	repo  Repository
	newID func() string
	now   func() time.Time
}

// New creates a unit service.
func New(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// WithIDGenerator overrides how new unit ids are minted.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	if fn != nil {
		s.newID = fn
	}
	return s
}

// WithClock overrides the clock used for createdAt.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Create stores a new unit. id, schemaVersion and the server-owned timestamps
// are assigned here; any client-provided values for them are replaced.
func (s *Service) Create(ctx context.Context, draft domunit.Unit) (domunit.Unit, error) {
	if err := domunit.ValidateDraft(draft); err != nil {
		return domunit.Unit{}, err
	}

	u, err := draft.With(domunit.FieldID, s.newID())
	if err != nil {
		return domunit.Unit{}, err
	}
	u, err = u.With(domunit.FieldSchemaVersion, domunit.SchemaVersion)
	if err != nil {
		return domunit.Unit{}, err
	}
	raw, _ := u.Field(domunit.FieldTimestamps)
	ts, err := domunit.StampCreated(raw, s.now())
	if err != nil {
		return domunit.Unit{}, err
	}
	u = u.WithRaw(domunit.FieldTimestamps, ts)

	created, err := s.repo.Put(ctx, u)
	if err != nil {
		return domunit.Unit{}, fmt.Errorf("create unit: %w", err)
	}
	return created, nil
}

// Get returns a unit by id.
func (s *Service) Get(ctx context.Context, id string) (domunit.Unit, error) {
	if id == "" {
		return domunit.Unit{}, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return domunit.Unit{}, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

// Update applies a partial unit to an existing one. Every top-level field in
// patch replaces the stored field; absent fields are kept.
func (s *Service) Update(ctx context.Context, id string, patch domunit.Unit) (domunit.Unit, error) {
	if id == "" {
		return domunit.Unit{}, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	if patch.IsZero() {
		return domunit.Unit{}, fmt.Errorf("update must contain at least one field: %w", domain.ErrValidation)
	}
	if pid := patch.ID(); pid != "" && pid != id {
		return domunit.Unit{}, fmt.Errorf("id %q does not match path id %q: %w", pid, id, domain.ErrValidation)
	}
	if patch.Has(domunit.FieldID) && patch.ID() == "" {
		return domunit.Unit{}, fmt.Errorf("id must be a string: %w", domain.ErrValidation)
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return domunit.Unit{}, fmt.Errorf("update unit: %w", err)
	}

	u, err := patch.With(domunit.FieldID, id)
	if err != nil {
		return domunit.Unit{}, err
	}
	updated, err := s.repo.Put(ctx, u)
	if err != nil {
		return domunit.Unit{}, fmt.Errorf("update unit: %w", err)
	}
	return updated, nil
}

// ListByType returns the ids of units classified as typ.
func (s *Service) ListByType(ctx context.Context, typ string) ([]string, error) {
	if typ == "" {
		return nil, fmt.Errorf("type is required: %w", domain.ErrValidation)
	}
	ids, err := s.repo.LookupByType(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("list by type: %w", err)
	}
	return ids, nil
}
