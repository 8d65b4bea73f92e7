// Package models defines the records the file pool persists.
package models

import "time"

// FileEntry is a downloaded file committed to the pool.
type FileEntry struct {
	// SiteID and FileID form the key.
	SiteID string
	FileID string

	// URL is the fixed (absolute, token-bearing) remote URL.
	URL string

	// Path is the content-store reference of the downloaded bytes.
	Path string

	// Extension is the guessed file extension without the dot, if any.
	Extension string

	// Revision is the /content/<n>/ marker of the URL the bytes came from.
	// Nil when the URL carried none.
	Revision *int64

	// TimeModified is the caller-supplied freshness marker (epoch seconds),
	// zero when unknown.
	TimeModified int64

	// Stale forces the file to be reported as outdated.
	Stale bool

	Size         int64
	DownloadedAt time.Time
}

// QueueEntry is a pending download.
type QueueEntry struct {
	SiteID       string
	FileID       string
	URL          string
	Revision     *int64
	TimeModified int64

	// Links accumulated across every enqueue of the same file.
	Links []Link

	// Seq orders entries of a site; lower runs first.
	Seq     int64
	AddedAt time.Time
}

// Site is a remote LMS installation the pool stores files for.
type Site struct {
	ID        string
	URL       string
	Token     string
	CreatedAt time.Time
}

// Int64 returns a pointer to v, handy for optional freshness markers.
func Int64(v int64) *int64 {
	return &v
}
