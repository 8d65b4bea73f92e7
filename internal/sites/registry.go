// Package sites registers the remote sites the pool downloads from. A site
// is only added after its token was accepted by the site's web service.
package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/models"
	siterepo "github.com/dmitrijs2005/filepool/internal/repositories/sites"
	"github.com/google/uuid"
)

const siteInfoFunction = "core_webservice_get_site_info"

// Caller invokes web-service functions of a site.
type Caller interface {
	Call(ctx context.Context, siteURL, token, wsFunction string, params url.Values, out any) error
}

// Remover drops everything stored for a site.
type Remover interface {
	RemoveSite(ctx context.Context, siteID string) error
}

// Info is the part of core_webservice_get_site_info the registry reads.
type Info struct {
	SiteName string `json:"sitename"`
	SiteURL  string `json:"siteurl"`
	Username string `json:"username"`
	UserID   int64  `json:"userid"`
}

type Registry struct {
	repo   siterepo.Repository
	ws     Caller
	pool   Remover
	logger logging.Logger
}

func NewRegistry(repo siterepo.Repository, ws Caller, pool Remover, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{repo: repo, ws: ws, pool: pool, logger: logger.With("module", "sites")}
}

// NormalizeURL adds a missing scheme and drops trailing slashes.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty site url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid site url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid site url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("invalid site url: missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

// Add verifies the token against the site and stores the site. Adding a URL
// that is already registered replaces its token and keeps its id.
func (r *Registry) Add(ctx context.Context, siteURL, token string) (*models.Site, error) {
	siteURL, err := NormalizeURL(siteURL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, common.ErrorInvalidToken
	}

	var info Info
	if err := r.ws.Call(ctx, siteURL, token, siteInfoFunction, nil, &info); err != nil {
		return nil, fmt.Errorf("verify site %s: %w", siteURL, err)
	}

	site, err := r.findByURL(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	if site == nil {
		site = &models.Site{ID: uuid.NewString(), URL: siteURL, CreatedAt: time.Now().UTC()}
	}
	site.Token = token

	if err := r.repo.Upsert(ctx, site); err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "site registered", "site", site.ID, "url", siteURL, "name", info.SiteName, "user", info.Username)
	return site, nil
}

func (r *Registry) findByURL(ctx context.Context, siteURL string) (*models.Site, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.URL == siteURL {
			return s, nil
		}
	}
	return nil, nil
}

// Get returns common.ErrorNotFound for an unknown id.
func (r *Registry) Get(ctx context.Context, id string) (*models.Site, error) {
	return r.repo.Get(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]*models.Site, error) {
	return r.repo.List(ctx)
}

// Delete removes the site with all of its files and pending downloads.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := r.pool.RemoveSite(ctx, id); err != nil {
		return fmt.Errorf("remove files of site %s: %w", id, err)
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info(ctx, "site deleted", "site", id)
	return nil
}
