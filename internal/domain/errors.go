package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnitNotFound signals a missing knowledge unit.
	ErrUnitNotFound = errors.New("knowledge unit not found")
	// ErrValidation signals a request that is missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrCorruptSnapshot signals a snapshot that exists but cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	// ErrStorageIO signals a failed snapshot write.
	ErrStorageIO = errors.New("storage io error")
	// ErrStorageInit signals a store that could not be initialized.
	ErrStorageInit = errors.New("storage init failed")
	// ErrStoreClosed signals an operation on a store after shutdown.
	ErrStoreClosed = errors.New("store closed")
	// ErrNotInitialized signals an operation on a store before Initialize.
	ErrNotInitialized = errors.New("store not initialized")
)

// CorruptSnapshotError reports an unreadable snapshot and where it came from.
type CorruptSnapshotError struct {
	Source string
	Err    error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCorruptSnapshot.Error(), e.Source, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() []error { return []error{ErrCorruptSnapshot, e.Err} }

// NewCorruptSnapshot creates a corrupt snapshot error.
func NewCorruptSnapshot(source string, err error) error {
	return &CorruptSnapshotError{Source: source, Err: err}
}

// StorageIOError wraps a failed persistence step with the operation name.
type StorageIOError struct {
	Op  string
	Err error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageIO.Error(), e.Op, e.Err)
}

func (e *StorageIOError) Unwrap() []error { return []error{ErrStorageIO, e.Err} }

// NewStorageIO creates a storage IO error.
func NewStorageIO(op string, err error) error {
	return &StorageIOError{Op: op, Err: err}
}

// StorageInitError wraps the reason a store failed to initialize.
type StorageInitError struct {
	Err error
}

func (e *StorageInitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStorageInit.Error(), e.Err)
}

func (e *StorageInitError) Unwrap() []error { return []error{ErrStorageInit, e.Err} }

// NewStorageInit creates a storage init error.
func NewStorageInit(err error) error {
	return &StorageInitError{Err: err}
}
