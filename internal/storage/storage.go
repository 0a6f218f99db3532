// Package storage persists knowledge entries. The entry table is the source
// of truth for the whole engine; the vector and keyword indices are derived
// from it and can always be rebuilt.
package storage

import (
	"context"

	"github.com/hyperjump/wakaru/internal/models"
)

// EntryStorage defines knowledge entry persistence operations.
type EntryStorage interface {
	CreateEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	// DeleteEntry removes the entry and reports whether it existed.
	DeleteEntry(ctx context.Context, id string) (bool, error)
	// ListEntries returns all entries ordered by creation time (oldest first).
	ListEntries(ctx context.Context) ([]*models.Entry, error)
	// ClearEntries removes all entries and returns how many were deleted.
	ClearEntries(ctx context.Context) (int64, error)
	CountEntries(ctx context.Context) (int64, error)
	Close() error
}
