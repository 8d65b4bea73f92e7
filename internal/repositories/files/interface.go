package files

import (
	"context"

	"github.com/dmitrijs2005/filepool/internal/models"
)

// Repository stores FileEntry records keyed by (site, file).
type Repository interface {
	// Get returns the entry or common.ErrorNotFound.
	Get(ctx context.Context, siteID, fileID string) (*models.FileEntry, error)

	// Upsert inserts or overwrites the entry.
	Upsert(ctx context.Context, e *models.FileEntry) error

	// Delete removes the entry; deleting a missing entry is not an error.
	Delete(ctx context.Context, siteID, fileID string) error

	// ListBySite returns every entry of a site ordered by file id.
	ListBySite(ctx context.Context, siteID string) ([]*models.FileEntry, error)

	// ListStale returns the entries of a site flagged stale.
	ListStale(ctx context.Context, siteID string) ([]*models.FileEntry, error)

	// SetStale flags one entry; common.ErrorNotFound if absent.
	SetStale(ctx context.Context, siteID, fileID string) error

	// SetStaleAll flags every entry of a site and returns how many entries
	// were not stale before.
	SetStaleAll(ctx context.Context, siteID string) (int, error)

	// DeleteBySite removes every entry of a site.
	DeleteBySite(ctx context.Context, siteID string) error
}
