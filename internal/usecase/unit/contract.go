package unit

import (
	"context"

	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
)

// Repository defines the storage contract for knowledge units.
type Repository interface {
	Put(ctx context.Context, u domunit.Unit) (domunit.Unit, error)
	Get(ctx context.Context, id string) (domunit.Unit, error)
	LookupByType(ctx context.Context, typ string) ([]string, error)
}
