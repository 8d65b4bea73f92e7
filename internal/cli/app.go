package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filepool/internal/service"
)

var errNoSite = errors.New("no site selected, run 'use <site-id>' or 'addsite <url>'")

type App struct {
	svc    *service.Service
	in     *bufio.Scanner
	out    io.Writer
	siteID string
}

func NewApp(svc *service.Service, in io.Reader, out io.Writer) *App {
	return &App{svc: svc, in: bufio.NewScanner(in), out: out}
}

// Run starts the pool in the background and blocks in the REPL until the
// user exits or ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if err := a.svc.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	fmt.Fprintln(a.out, "filepool CLI (type 'help' for commands)")

	all, err := a.svc.Sites.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if len(all) == 1 {
		a.siteID = all[0].ID
		fmt.Fprintln(a.out, "Using site", all[0].URL)
	}

	runREPL(ctx, a, a.in)
	return nil
}

func (a *App) status() string {
	mode := string(a.svc.Monitor.Mode())
	if a.siteID == "" {
		return fmt.Sprintf(" (%s)", mode)
	}
	return fmt.Sprintf(" (%s %s)", shortID(a.siteID), mode)
}

func (a *App) site() (string, error) {
	if a.siteID == "" {
		return "", errNoSite
	}
	return a.siteID, nil
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"sites":          a.listSites,
		"addsite":        a.addSite,
		"use":            a.useSite,
		"delsite":        a.deleteSite,
		"get":            a.get,
		"url":            a.url,
		"state":          a.state,
		"queue":          a.queue,
		"files":          a.files,
		"hasfiles":       a.hasFiles,
		"invalidate":     a.invalidate,
		"invalidatecomp": a.invalidateComponent,
		"invalidateall":  a.invalidateAll,
		"rm":             a.remove,
		"rmcomp":         a.removeComponent,
		"sync":           a.sync,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
