package database

import (
	"time"
)

// DeletionRecord is one deletion request issued for a duplicate group
type DeletionRecord struct {
	ID        int64
	Keep      string   // URI that was kept
	Deleted   []string // URIs handed to the deleter
	CreatedAt time.Time
}
