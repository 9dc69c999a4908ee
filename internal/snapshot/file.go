package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memcore/internal/domain"
	"github.com/kailas-cloud/memcore/internal/domain/document"
	"github.com/kailas-cloud/memcore/internal/metrics"
)

const backendFile = "file"

// FileStore keeps the snapshot in a single file replaced atomically on save.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a file-backed snapshot store at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: filepath.Clean(path), logger: logger}
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string { return f.path }

// Save encodes d and replaces the snapshot file. The previous snapshot stays
// intact until the rename succeeds.
func (f *FileStore) Save(_ context.Context, d *document.Document) error {
	start := time.Now()
	data, err := Encode(d)
	if err != nil {
		return domain.NewStorageIO("encode", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return domain.NewStorageIO("mkdir", err)
	}
	if err := writeAtomic(f.path, data); err != nil {
		return domain.NewStorageIO("write", err)
	}
	metrics.SnapshotSaveDuration.WithLabelValues(backendFile).Observe(time.Since(start).Seconds())
	metrics.SnapshotSizeBytes.WithLabelValues(backendFile).Set(float64(len(data)))
	return nil
}

// Load reads the snapshot. A missing file yields (nil, nil).
func (f *FileStore) Load(_ context.Context) (*document.Document, error) {
	f.removeStaleTemps()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewStorageIO("read", err)
	}
	d, err := Decode(data)
	if err != nil {
		return nil, domain.NewCorruptSnapshot(f.path, err)
	}
	f.logger.Info("Snapshot loaded",
		zap.String("path", f.path),
		zap.Int("bytes", len(data)),
		zap.Int("units", d.Len()),
	)
	return d, nil
}

// Ping checks that the snapshot directory is usable.
func (f *FileStore) Ping(_ context.Context) error {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Created on first save.
			return nil
		}
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// removeStaleTemps deletes temp files left behind by a crash mid-save.
func (f *FileStore) removeStaleTemps() {
	matches, err := filepath.Glob(f.path + ".tmp-*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			f.logger.Warn("Removed stale snapshot temp file", zap.String("path", m))
		}
	}
}

// writeAtomic writes data to a temp file in the target directory, syncs it,
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", strings.TrimPrefix(tmpName, dir+string(filepath.Separator)), err)
	}
	tmpName = ""

	// Best effort: fsync the directory so the rename itself is durable.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
