package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when no storage backend has been registered.
var ErrNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	backendMu      sync.RWMutex
	deletionWriter func() DeletionWriter
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(writer func() DeletionWriter) {
	backendMu.Lock()
	defer backendMu.Unlock()
	deletionWriter = writer
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return deletionWriter != nil
}

// GetDeletionWriter returns a DeletionWriter from the registered backend
func GetDeletionWriter(ctx context.Context) (DeletionWriter, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if deletionWriter == nil {
		return nil, ErrNotInitialized
	}
	return deletionWriter(), nil
}

// GetDeletionReader returns a DeletionReader from the registered backend
func GetDeletionReader(ctx context.Context) (DeletionReader, error) {
	return GetDeletionWriter(ctx)
}
