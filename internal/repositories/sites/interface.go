// Package sites persists the registered Moodle sites and their web
// service tokens.
package sites

import (
	"context"

	"github.com/dmitrijs2005/filepool/internal/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound for an unknown id.
	Get(ctx context.Context, id string) (*models.Site, error)
	Upsert(ctx context.Context, s *models.Site) error
	List(ctx context.Context) ([]*models.Site, error)
	Delete(ctx context.Context, id string) error
}
