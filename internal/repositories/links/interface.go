package links

import (
	"context"

	"github.com/dmitrijs2005/filepool/internal/models"
)

type Repository interface {
	// Add records links for a file; duplicates are ignored.
	Add(ctx context.Context, siteID, fileID string, links []models.Link) error

	// ByFile returns the links of a file.
	ByFile(ctx context.Context, siteID, fileID string) ([]models.Link, error)

	// FileIDsByComponent returns the distinct ids of files linked to the
	// component; an empty componentID matches any instance.
	FileIDsByComponent(ctx context.Context, siteID, component, componentID string) ([]string, error)

	// DeleteByFile drops every link of a file.
	DeleteByFile(ctx context.Context, siteID, fileID string) error

	// DeleteBySite drops every link of a site.
	DeleteBySite(ctx context.Context, siteID string) error
}
