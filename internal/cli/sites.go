package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filepool/internal/common"
)

func (a *App) listSites(ctx context.Context, _ []string) error {
	all, err := a.svc.Sites.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(a.out, "No sites registered")
		return nil
	}
	for _, s := range all {
		mark := " "
		if s.ID == a.siteID {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s\n", mark, s.ID, s.URL)
	}
	return nil
}

func (a *App) addSite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: addsite <url> [token]")
	}
	token := ""
	if len(args) > 1 {
		token = args[1]
	} else {
		var err error
		token, err = GetSecret(a.in, "Web service token", a.out)
		if err != nil {
			return err
		}
	}

	site, err := a.svc.Sites.Add(ctx, args[0], token)
	if err != nil {
		return err
	}
	a.siteID = site.ID
	fmt.Fprintf(a.out, "Site %s registered as %s\n", site.URL, site.ID)
	return nil
}

// useSite accepts a full id or an unambiguous prefix of one.
func (a *App) useSite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: use <site-id>")
	}
	id, err := a.resolveSite(ctx, args[0])
	if err != nil {
		return err
	}
	a.siteID = id
	return nil
}

func (a *App) deleteSite(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: delsite <site-id>")
	}
	id, err := a.resolveSite(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.svc.Sites.Delete(ctx, id); err != nil {
		return err
	}
	if a.siteID == id {
		a.siteID = ""
	}
	fmt.Fprintln(a.out, "Site", id, "removed")
	return nil
}

func (a *App) resolveSite(ctx context.Context, prefix string) (string, error) {
	all, err := a.svc.Sites.List(ctx)
	if err != nil {
		return "", err
	}
	var found []string
	for _, s := range all {
		if s.ID == prefix {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("site %s: %w", prefix, common.ErrorNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("site prefix %s is ambiguous", prefix)
	}
}
