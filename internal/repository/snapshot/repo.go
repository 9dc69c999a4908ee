package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/memcore/internal/db"
	"github.com/kailas-cloud/memcore/internal/domain"
	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/metrics"
	"github.com/kailas-cloud/memcore/internal/snapshot"
)

const backendRedis = "redis"

// DefaultKey is the key the snapshot is written under when none is configured.
const DefaultKey = "memcore:snapshot"

// store is the consumer interface for snapshot blobs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// Repo keeps the encoded snapshot under a single Redis/Valkey key.
// SET replaces the value atomically, so readers see either the old or the new
// snapshot.
type Repo struct {
	store store
	key   string
}

// New creates a snapshot repository.
func New(s store, key string) *Repo {
	if key == "" {
		key = DefaultKey
	}
	return &Repo{store: s, key: key}
}

// Key returns the key the snapshot lives under.
func (r *Repo) Key() string { return r.key }

// Save encodes d and writes it under the configured key.
func (r *Repo) Save(ctx context.Context, d *document.Document) error {
	start := time.Now()
	data, err := snapshot.Encode(d)
	if err != nil {
		return domain.NewStorageIO("encode", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return domain.NewStorageIO("set "+r.key, err)
	}
	metrics.SnapshotSaveDuration.WithLabelValues(backendRedis).Observe(time.Since(start).Seconds())
	metrics.SnapshotSizeBytes.WithLabelValues(backendRedis).Set(float64(len(data)))
	return nil
}

// Load reads the snapshot. A missing key yields (nil, nil).
func (r *Repo) Load(ctx context.Context) (*document.Document, error) {
	data, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, domain.NewStorageIO("get "+r.key, err)
	}
	d, err := snapshot.Decode(data)
	if err != nil {
		return nil, domain.NewCorruptSnapshot(r.source(), err)
	}
	return d, nil
}

// Ping checks connectivity to the backing server.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (r *Repo) source() string {
	return "redis://" + r.key
}
