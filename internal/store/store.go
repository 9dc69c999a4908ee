// Package store owns the canonical document of knowledge units.
//
// Writers are serialized and each mutation is built on a copy-on-write
// transaction, persisted as a full snapshot and only then published. Readers
// load the committed document through an atomic pointer and never block on
// writers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memcore/internal/domain"
	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/domain/unit"
	"github.com/kailas-cloud/memcore/internal/index"
	"github.com/kailas-cloud/memcore/internal/metrics"
)

// actorPrefix prefixes the generated writer id of a store built without
// WithActor. Every such store gets its own id so equal counters still break
// ties by actor.
const actorPrefix = "memcore-"

// Persister reads and writes full snapshots of the document.
type Persister interface {
	Save(ctx context.Context, d *document.Document) error
	// Load returns (nil, nil) when no snapshot exists yet.
	Load(ctx context.Context) (*document.Document, error)
	Ping(ctx context.Context) error
}

// Store is the Document Store.
type Store struct {
	persister Persister
	logger    *zap.Logger
	resolver  document.Resolver
	types     *index.Manager
	now       func() time.Time
	actor     string

	mu       sync.Mutex // single writer, held through Save
	doc      atomic.Pointer[document.Document]
	closed   atomic.Bool
	verified atomic.Pointer[verification]
}

// verification is the index check result of one committed document.
type verification struct {
	doc *document.Document
	err error
}

// New creates a store. Call Initialize before use.
func New(p Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		persister: p,
		logger:    logger,
		resolver:  unit.Resolver(),
		types:     index.NewTypeIndex(),
		now:       time.Now,
		actor:     actorPrefix + uuid.NewString(),
	}
}

// WithResolver replaces the conflict resolver.
func (s *Store) WithResolver(r document.Resolver) *Store {
	if r != nil {
		s.resolver = r
	}
	return s
}

// WithClock overrides the wall clock used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// WithActor sets the writer id of a freshly created document. A loaded
// snapshot keeps the actor it was written with.
func (s *Store) WithActor(actor string) *Store {
	if actor != "" {
		s.actor = actor
	}
	return s
}

// Initialize loads the last snapshot, or starts empty when there is none.
// A snapshot that cannot be read is fatal.
func (s *Store) Initialize(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.persister.Load(ctx)
	if err != nil {
		return domain.NewStorageInit(err)
	}
	if d == nil {
		s.logger.Info("No snapshot found, starting empty", zap.String("actor", s.actor))
		d = document.New(s.actor)
	}

	if err := s.types.Verify(d); err != nil {
		s.logger.Warn("Rebuilding index from units", zap.String("index", s.types.Name()), zap.Error(err))
		txn := d.Begin(s.resolver)
		s.types.Rebuild(txn, d)
		d = txn.Commit()
	}

	s.doc.Store(d)
	metrics.UnitsTotal.Set(float64(d.Len()))
	s.logger.Info("Store initialized",
		zap.Int("units", d.Len()),
		zap.Uint64("clock", d.Clock()),
		zap.String("actor", d.Actor()),
	)
	return nil
}

// Put installs u. For an existing id every top-level field present in u
// replaces the stored one and absent fields are kept; id and schemaVersion
// never change. Returns the committed unit.
func (s *Store) Put(ctx context.Context, u unit.Unit) (unit.Unit, error) {
	id := u.ID()
	if id == "" {
		return unit.Unit{}, fmt.Errorf("put: id is required: %w", domain.ErrValidation)
	}

	var committed document.Record
	err := s.mutate(ctx, "put", func(cur *document.Document, txn *document.Txn) error {
		prev, exists := cur.Record(id)
		fields, err := s.prepareFields(id, u, prev, exists)
		if err != nil {
			return err
		}
		txn.PutLocal(id, fields)
		return nil
	}, func(next *document.Document) {
		committed, _ = next.Record(id)
	})
	if err != nil {
		return unit.Unit{}, err
	}
	return unit.Reconstruct(committed.Values()), nil
}

// Merge folds a concurrently written document into the store with the same
// resolver. The remote index is ignored and derived again locally.
func (s *Store) Merge(ctx context.Context, remote *document.Document) error {
	if remote == nil {
		return nil
	}
	return s.mutate(ctx, "merge", func(_ *document.Document, txn *document.Txn) error {
		txn.MergeFrom(remote)
		return nil
	}, nil)
}

// Get returns the unit with id.
func (s *Store) Get(_ context.Context, id string) (unit.Unit, error) {
	d, err := s.committed()
	if err != nil {
		return unit.Unit{}, err
	}
	rec, ok := d.Record(id)
	if !ok {
		return unit.Unit{}, fmt.Errorf("get %s: %w", id, domain.ErrUnitNotFound)
	}
	return unit.Reconstruct(rec.Values()), nil
}

// LookupByType returns the ids classified as typ, sorted. Never nil.
func (s *Store) LookupByType(_ context.Context, typ string) ([]string, error) {
	d, err := s.committed()
	if err != nil {
		return nil, err
	}
	return s.types.Lookup(d, typ), nil
}

// SnapshotHandle returns the committed document. It is never mutated.
func (s *Store) SnapshotHandle() (*document.Document, error) {
	return s.committed()
}

// Len returns the number of committed units.
func (s *Store) Len() int {
	d := s.doc.Load()
	if d == nil {
		return 0
	}
	return d.Len()
}

// Ping checks the persistence backend.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	if err := s.persister.Ping(ctx); err != nil {
		return fmt.Errorf("persister: %w", err)
	}
	return nil
}

// VerifyIndex reports whether the committed index matches the units.
// Committed documents are immutable, so the result is computed once per
// commit.
func (s *Store) VerifyIndex(_ context.Context) error {
	d, err := s.committed()
	if err != nil {
		return err
	}
	if v := s.verified.Load(); v != nil && v.doc == d {
		return v.err
	}
	if err = s.types.Verify(d); err != nil {
		err = fmt.Errorf("verify: %w", err)
	}
	s.verified.Store(&verification{doc: d, err: err})
	return err
}

// Shutdown closes the store. Every commit is already durable, so nothing is
// written. It waits for an in-flight mutation to finish.
func (s *Store) Shutdown(_ context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("Store shut down", zap.Int("units", s.Len()))
	return nil
}

// mutate runs apply on a transaction over the committed document, updates
// the index for every touched record, saves and publishes. On any error the
// transaction is discarded and the committed document is unchanged.
func (s *Store) mutate(
	ctx context.Context,
	op string,
	apply func(cur *document.Document, txn *document.Txn) error,
	onCommit func(next *document.Document),
) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.StorageMutationsTotal.WithLabelValues(op, result).Inc()
	}()

	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return domain.ErrStoreClosed
	}

	cur := s.doc.Load()
	if cur == nil {
		return domain.ErrNotInitialized
	}

	txn := cur.Begin(s.resolver)
	if err := apply(cur, txn); err != nil {
		return err
	}
	for _, c := range txn.Changes() {
		s.types.OnUnitWritten(txn, c)
	}
	next := txn.Commit()

	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.Error("Snapshot save failed, mutation discarded", zap.String("op", op), zap.Error(err))
		if !errors.Is(err, domain.ErrStorageIO) {
			err = domain.NewStorageIO("save", err)
		}
		return err
	}

	s.doc.Store(next)
	metrics.UnitsTotal.Set(float64(next.Len()))
	if onCommit != nil {
		onCommit(next)
	}
	return nil
}

// prepareFields turns u into the field writes of one Put.
func (s *Store) prepareFields(id string, u unit.Unit, prev document.Record, exists bool) (map[string][]byte, error) {
	fields := u.RawFields()
	if exists {
		delete(fields, unit.FieldID)
		delete(fields, unit.FieldSchemaVersion)
	}

	var prevTS json.RawMessage
	if exists {
		if r, ok := prev[unit.FieldTimestamps]; ok {
			prevTS = r.Value
		}
	}
	ts, err := unit.MergeTimestamps(prevTS, fields[unit.FieldTimestamps], s.now())
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}
	fields[unit.FieldTimestamps] = ts
	return fields, nil
}

func (s *Store) committed() (*document.Document, error) {
	if s.closed.Load() {
		return nil, domain.ErrStoreClosed
	}
	d := s.doc.Load()
	if d == nil {
		return nil, domain.ErrNotInitialized
	}
	return d, nil
}
