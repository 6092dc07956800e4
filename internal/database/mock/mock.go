// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-dedup/internal/database"
)

// MockDeletionLog is an in-memory implementation of database.DeletionWriter
type MockDeletionLog struct {
	mu      sync.RWMutex
	records []database.DeletionRecord
	nextID  int64

	// Error injection
	RecordError error
	ListError   error
	CountError  error
}

// NewMockDeletionLog creates a new empty mock deletion log
func NewMockDeletionLog() *MockDeletionLog {
	return &MockDeletionLog{nextID: 1}
}

// RecordDeletion stores one deletion request
func (m *MockDeletionLog) RecordDeletion(ctx context.Context, keep string, deleted []string) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, database.DeletionRecord{
		ID:        m.nextID,
		Keep:      keep,
		Deleted:   slices.Clone(deleted),
		CreatedAt: time.Now(),
	})
	m.nextID++
	return nil
}

// ListDeletions returns the most recent records, newest first
func (m *MockDeletionLog) ListDeletions(ctx context.Context, limit int) ([]database.DeletionRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.DeletionRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.records[i])
	}
	return out, nil
}

// CountDeleted returns the total number of URIs recorded as deleted
func (m *MockDeletionLog) CountDeleted(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, r := range m.records {
		total += len(r.Deleted)
	}
	return total, nil
}

// WasDeleted reports whether a URI appears in any record
func (m *MockDeletionLog) WasDeleted(ctx context.Context, uri string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if slices.Contains(r.Deleted, uri) {
			return true, nil
		}
	}
	return false, nil
}

var _ database.DeletionWriter = (*MockDeletionLog)(nil)
