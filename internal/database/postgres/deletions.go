package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/photo-dedup/internal/database"
	"github.com/lib/pq"
)

// DeletionRepository provides PostgreSQL-backed deletion log storage
type DeletionRepository struct {
	pool *Pool
}

// NewDeletionRepository creates a new PostgreSQL deletion repository
func NewDeletionRepository(pool *Pool) *DeletionRepository {
	return &DeletionRepository{pool: pool}
}

// RecordDeletion stores one deletion request
func (r *DeletionRepository) RecordDeletion(ctx context.Context, keep string, deleted []string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deletion_log (keep_uri, deleted_uris)
		VALUES ($1, $2)
	`, keep, pq.Array(deleted))
	if err != nil {
		return fmt.Errorf("insert deletion record: %w", err)
	}
	return nil
}

// ListDeletions returns the most recent deletion records, newest first
func (r *DeletionRepository) ListDeletions(ctx context.Context, limit int) ([]database.DeletionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, keep_uri, deleted_uris, created_at
		FROM deletion_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}
	defer rows.Close()

	var records []database.DeletionRecord
	for rows.Next() {
		var rec database.DeletionRecord
		if err := rows.Scan(&rec.ID, &rec.Keep, pq.Array(&rec.Deleted), &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deletion record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletion records: %w", err)
	}
	return records, nil
}

// CountDeleted returns the total number of URIs ever deleted
func (r *DeletionRepository) CountDeleted(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(cardinality(deleted_uris)), 0) FROM deletion_log
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count deleted photos: %w", err)
	}
	return count, nil
}

// WasDeleted reports whether a URI appears in any deletion record
func (r *DeletionRepository) WasDeleted(ctx context.Context, uri string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM deletion_log WHERE deleted_uris @> ARRAY[$1]::TEXT[])
	`, uri).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check deleted uri: %w", err)
	}
	return exists, nil
}
