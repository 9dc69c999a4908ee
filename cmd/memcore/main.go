package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memcore/internal/config"
	dbRedis "github.com/kailas-cloud/memcore/internal/db/redis"
	logpkg "github.com/kailas-cloud/memcore/internal/logger"
	"github.com/kailas-cloud/memcore/internal/metrics"
	snapshotrepo "github.com/kailas-cloud/memcore/internal/repository/snapshot"
	"github.com/kailas-cloud/memcore/internal/snapshot"
	"github.com/kailas-cloud/memcore/internal/store"
	chiTransport "github.com/kailas-cloud/memcore/internal/transport/chi"
	healthuc "github.com/kailas-cloud/memcore/internal/usecase/health"
	unituc "github.com/kailas-cloud/memcore/internal/usecase/unit"
	"github.com/kailas-cloud/memcore/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting memcore API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	metrics.Register(prometheus.DefaultRegisterer)
	metrics.RegisterBuildInfo(prometheus.DefaultRegisterer, version.Version, version.Commit)

	ctx := context.Background()
	persister, closeBackend, err := buildPersister(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to create snapshot backend", zap.Error(err))
	}
	defer closeBackend()

	st := store.New(persister, logger.Named("store")).WithActor(cfg.Storage.Actor)
	if err := st.Initialize(ctx); err != nil {
		// A snapshot that exists but cannot be read is never overwritten.
		logger.Fatal("Failed to initialize storage, the application cannot start", zap.Error(err))
	}

	unitSvc := unituc.New(st)
	healthSvc := healthuc.New(st, st)

	server := chiTransport.NewServer(unitSvc, healthSvc, logger)
	r := chiTransport.NewRouter(server, logger, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("memcore server is listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := st.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during store shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildPersister selects the snapshot backend. The returned close func is
// always safe to call.
func buildPersister(
	ctx context.Context, cfg config.StorageConfig, logger *zap.Logger,
) (store.Persister, func(), error) {
	if !cfg.UsesRedis() {
		fs := snapshot.NewFileStore(cfg.Path, logger.Named("snapshot"))
		logger.Info("Using file snapshot backend", zap.String("path", fs.Path()))
		return fs, func() {}, nil
	}

	db, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Redis.Addrs,
		Username:   cfg.Redis.Username,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		ClientName: "memcore-" + cfg.Actor,
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("create %s client: %w", cfg.Driver, err)
	}

	timeout := time.Duration(cfg.Redis.ReadinessTimeout) * time.Second
	if err := db.WaitForReady(ctx, timeout); err != nil {
		db.Close()
		return nil, func() {}, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
	}

	repo := snapshotrepo.New(db, cfg.Redis.Key)
	logger.Info("Using key-value snapshot backend",
		zap.String("driver", cfg.Driver),
		zap.Strings("addrs", cfg.Redis.Addrs),
		zap.String("key", repo.Key()),
	)
	return repo, db.Close, nil
}
