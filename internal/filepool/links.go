package filepool

import (
	"context"

	"github.com/dmitrijs2005/filepool/internal/models"
)

// AddFileLinks links the file to components. Existing links are left as
// they are.
func (p *Pool) AddFileLinks(ctx context.Context, siteID, fileID string, links []models.Link) error {
	return storageErr(p.store.Links().Add(ctx, siteID, fileID, links))
}

// AddFileLinkByURL links the file behind url to a component. The file
// does not need to be known yet.
func (p *Pool) AddFileLinkByURL(ctx context.Context, siteID, url, component, componentID string) error {
	_, fileID, _, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return err
	}
	return p.AddFileLinks(ctx, siteID, fileID, []models.Link{{Component: component, ComponentID: componentID}})
}

// FileLinks returns the components linked to a file.
func (p *Pool) FileLinks(ctx context.Context, siteID, fileID string) ([]models.Link, error) {
	links, err := p.store.Links().ByFile(ctx, siteID, fileID)
	return links, storageErr(err)
}
