package memcore

import "github.com/kailas-cloud/memcore/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnitNotFound    = domain.ErrUnitNotFound
	ErrValidation      = domain.ErrValidation
	ErrCorruptSnapshot = domain.ErrCorruptSnapshot
	ErrStorageIO       = domain.ErrStorageIO
	ErrStorageInit     = domain.ErrStorageInit
	ErrStoreClosed     = domain.ErrStoreClosed
)

