package memcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/kailas-cloud/memcore/internal/db/redis"
	"github.com/kailas-cloud/memcore/internal/domain/document"
	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
	snapshotrepo "github.com/kailas-cloud/memcore/internal/repository/snapshot"
	"github.com/kailas-cloud/memcore/internal/snapshot"
	"github.com/kailas-cloud/memcore/internal/store"
	healthuc "github.com/kailas-cloud/memcore/internal/usecase/health"
	unituc "github.com/kailas-cloud/memcore/internal/usecase/unit"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type unitUseCase interface {
	Create(ctx context.Context, draft domunit.Unit) (domunit.Unit, error)
	Get(ctx context.Context, id string) (domunit.Unit, error)
	Update(ctx context.Context, id string, patch domunit.Unit) (domunit.Unit, error)
	ListByType(ctx context.Context, typ string) ([]string, error)
}

type replica interface {
	SnapshotHandle() (*document.Document, error)
	Merge(ctx context.Context, remote *document.Document) error
	Shutdown(ctx context.Context) error
	Len() int
}

// Client is the memcore SDK entry point.
type Client struct {
	replica      replica
	closeBackend func()
	unitSvc      unitUseCase
	healthSvc    healthUseCase
	obs          *observer
}

// New opens the snapshot backend and loads the last snapshot.
// The provided context is used for the readiness check and the initial load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("memcore: storage required (use WithFile, WithValkey or WithRedis)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	persister, closeBackend, err := createPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st := store.New(persister, nil).WithActor(cfg.actor)
	if err := st.Initialize(ctx); err != nil {
		closeBackend()
		return nil, fmt.Errorf("memcore: initialize: %w", err)
	}

	return wireClient(st, closeBackend, obs), nil
}

func createPersister(ctx context.Context, cfg *clientConfig) (store.Persister, func(), error) {
	switch cfg.driver {
	case "file":
		if cfg.path == "" {
			return nil, nil, errors.New("memcore: snapshot path required")
		}
		return snapshot.NewFileStore(cfg.path, nil), func() {}, nil
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("memcore: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("memcore: database not ready: %w", err)
		}
		return snapshotrepo.New(s, cfg.key), s.Close, nil
	default:
		return nil, nil, fmt.Errorf("memcore: unknown driver %q", cfg.driver)
	}
}

func wireClient(st *store.Store, closeBackend func(), obs *observer) *Client {
	return &Client{
		replica:      st,
		closeBackend: closeBackend,
		unitSvc:      unituc.New(st),
		healthSvc:    healthuc.New(st, st),
		obs:          obs,
	}
}

// Close shuts the store down and releases the backend.
// Every commit is already durable.
func (c *Client) Close() {
	if c.replica != nil {
		_ = c.replica.Shutdown(context.Background())
	}
	if c.closeBackend != nil {
		c.closeBackend()
	}
}

// Units returns the knowledge unit service.
func (c *Client) Units() *UnitService {
	return &UnitService{svc: c.unitSvc, obs: c.obs}
}

// Count returns the number of stored units.
func (c *Client) Count() int {
	return c.replica.Len()
}

// MergeFrom folds the committed state of other into c. Concurrent edits to
// the same field resolve the same way on both sides, so merging in both
// directions leaves the clients identical.
func (c *Client) MergeFrom(ctx context.Context, other *Client) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("merge", start, err) }()

	if other == nil || other.replica == nil {
		return errors.New("merge: nil client")
	}
	remote, err := other.replica.SnapshotHandle()
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	if err = c.replica.Merge(ctx, remote); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}
