// Package content stores the downloaded bytes. Files are addressed by a
// key of the form "<siteID>/<fileID>[.<ext>]"; the key is what the pool
// records as FileEntry.Path.
package content

import (
	"context"
	"io"
	"strings"
)

// Store persists file bytes.
type Store interface {
	// Put stores r under the key derived from site, file and extension and
	// returns that key with the number of bytes written. A failed Put
	// leaves nothing behind.
	Put(ctx context.Context, siteID, fileID, ext string, r io.Reader) (key string, size int64, err error)

	// Open returns the bytes stored under key or common.ErrorNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteSite removes every key of the site.
	DeleteSite(ctx context.Context, siteID string) error

	// URL returns a locally servable reference to key.
	URL(ctx context.Context, key string) (string, error)
}

// Key builds the storage key of a file.
func Key(siteID, fileID, ext string) string {
	name := fileID
	if ext != "" {
		name += "." + ext
	}
	return siteID + "/" + name
}

// SplitKey returns the site and file ids encoded in key. ok is false when
// key was not built by Key.
func SplitKey(key string) (siteID, fileID string, ok bool) {
	siteID, name, found := strings.Cut(key, "/")
	if !found || siteID == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return siteID, name, true
}
