package database

import (
	"context"
)

// DeletionReader provides read-only access to the deletion log
type DeletionReader interface {
	// ListDeletions returns the most recent deletion records, newest first
	ListDeletions(ctx context.Context, limit int) ([]DeletionRecord, error)
	// CountDeleted returns the total number of URIs ever deleted
	CountDeleted(ctx context.Context) (int, error)
	// WasDeleted reports whether a URI appears in any deletion record
	WasDeleted(ctx context.Context, uri string) (bool, error)
}

// DeletionWriter provides write access to the deletion log
type DeletionWriter interface {
	DeletionReader

	// RecordDeletion stores one deletion request
	RecordDeletion(ctx context.Context, keep string, deleted []string) error
}
