package queue

import (
	"context"

	"github.com/dmitrijs2005/filepool/internal/models"
)

type Repository interface {
	// Get returns the entry or common.ErrorNotFound.
	Get(ctx context.Context, siteID, fileID string) (*models.QueueEntry, error)

	// Upsert inserts a new entry at the tail of the site's queue or
	// overwrites the fields of an existing one in place.
	Upsert(ctx context.Context, e *models.QueueEntry) error

	// Next returns the oldest entry of the site or common.ErrorNotFound.
	Next(ctx context.Context, siteID string) (*models.QueueEntry, error)

	// Delete removes the entry; deleting a missing entry is not an error.
	Delete(ctx context.Context, siteID, fileID string) error

	// ListBySite returns the site's entries in queue order.
	ListBySite(ctx context.Context, siteID string) ([]*models.QueueEntry, error)

	// Sites returns the ids of sites with at least one pending entry.
	Sites(ctx context.Context) ([]string, error)

	// DeleteBySite drops the site's queue.
	DeleteBySite(ctx context.Context, siteID string) error
}
