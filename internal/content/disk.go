package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/filex"
)

// Disk keeps files under a root directory, one subdirectory per site.
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &Disk{root: abs}, nil
}

func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) path(key string) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid content key %q", key)
	}
	return p, nil
}

func (d *Disk) Put(ctx context.Context, siteID, fileID, ext string, r io.Reader) (string, int64, error) {
	key := Key(siteID, fileID, ext)
	p, err := d.path(key)
	if err != nil {
		return "", 0, err
	}

	n, err := filex.WriteAtomic(p, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, err
	}
	return key, n, nil
}

func (d *Disk) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (d *Disk) DeleteSite(ctx context.Context, siteID string) error {
	p, err := d.path(siteID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("remove site %s: %w", siteID, err)
	}
	return nil
}

// URL returns a file:// URL of the stored file.
func (d *Disk) URL(ctx context.Context, key string) (string, error) {
	p, err := d.path(key)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String(), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
