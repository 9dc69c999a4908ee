package health

import "context"

// StoragePinger checks snapshot backend availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// IndexVerifier checks that derived indexes match the committed units.
type IndexVerifier interface {
	VerifyIndex(ctx context.Context) error
}
