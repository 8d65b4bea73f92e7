package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
)

const downloadTimeout = 5 * time.Minute

// componentArgs splits "<component> [id]".
func componentArgs(args []string, usage string) (string, string, error) {
	switch len(args) {
	case 1:
		return args[0], "", nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", errors.New("usage: " + usage)
	}
}

// urlArgs splits "<url> [component [id]]".
func urlArgs(args []string, usage string) (url, component, componentID string, err error) {
	if len(args) == 0 || len(args) > 3 {
		return "", "", "", errors.New("usage: " + usage)
	}
	url = args[0]
	if len(args) > 1 {
		component = args[1]
	}
	if len(args) > 2 {
		componentID = args[2]
	}
	return url, component, componentID, nil
}

func (a *App) get(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	u, comp, compID, err := urlArgs(args, "get <url> [component [id]]")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	src, err := a.svc.Pool.GetSrcByURL(ctx, siteID, u, comp, compID, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, src)
	return nil
}

func (a *App) url(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	u, comp, compID, err := urlArgs(args, "url <url> [component [id]]")
	if err != nil {
		return err
	}
	src, err := a.svc.Pool.GetURLByURL(ctx, siteID, u, comp, compID, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, src)
	return nil
}

func (a *App) state(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: state <url>")
	}
	st, err := a.svc.Pool.GetFileStateByURL(ctx, siteID, args[0], nil, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, st.String())
	return nil
}

func (a *App) queue(ctx context.Context, _ []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	entries, err := a.svc.Pool.QueueEntries(ctx, siteID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "Queue is empty")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tADDED\tLINKS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", e.FileID, e.AddedAt.Local().Format(time.DateTime), len(e.Links))
	}
	return tw.Flush()
}

func (a *App) files(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	comp, compID, err := componentArgs(args, "files <component> [id]")
	if err != nil {
		return err
	}
	entries, err := a.svc.Pool.FilesByComponent(ctx, siteID, comp, compID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No files")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tSTALE\tPATH")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%t\t%s\n", e.FileID, e.Size, e.Stale, e.Path)
	}
	return tw.Flush()
}

func (a *App) hasFiles(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	comp, compID, err := componentArgs(args, "hasfiles <component> [id]")
	if err != nil {
		return err
	}
	ok, err := a.svc.Pool.ComponentHasFiles(ctx, siteID, comp, compID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "yes")
	} else {
		fmt.Fprintln(a.out, "no")
	}
	return nil
}

func (a *App) invalidate(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: invalidate <url>")
	}
	return a.svc.Pool.InvalidateFileByURL(ctx, siteID, args[0])
}

func (a *App) invalidateComponent(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	comp, compID, err := componentArgs(args, "invalidatecomp <component> [id]")
	if err != nil {
		return err
	}
	return a.svc.Pool.InvalidateFilesByComponent(ctx, siteID, comp, compID)
}

func (a *App) invalidateAll(ctx context.Context, _ []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	return a.svc.Pool.InvalidateAllFiles(ctx, siteID)
}

func (a *App) remove(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: rm <url>")
	}
	return a.svc.Pool.RemoveFileByURL(ctx, siteID, args[0])
}

func (a *App) removeComponent(ctx context.Context, args []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	comp, compID, err := componentArgs(args, "rmcomp <component> [id]")
	if err != nil {
		return err
	}
	return a.svc.Pool.RemoveFilesByComponent(ctx, siteID, comp, compID)
}

func (a *App) sync(ctx context.Context, _ []string) error {
	siteID, err := a.site()
	if err != nil {
		return err
	}
	n, err := a.svc.Pool.QueueOutdatedFiles(ctx, siteID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d files queued\n", n)
	return nil
}
