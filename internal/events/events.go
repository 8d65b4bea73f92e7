// Package events announces pool changes to other processes.
package events

import (
	"context"
	"time"
)

type Type string

const (
	FileDownloaded     Type = "file.downloaded"
	FileDownloadFailed Type = "file.download_failed"
	FileInvalidated    Type = "file.invalidated"
	FileRemoved        Type = "file.removed"
)

type Event struct {
	Type   Type      `json:"type"`
	SiteID string    `json:"site_id"`
	FileID string    `json:"file_id,omitempty"`
	URL    string    `json:"url,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher delivers events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

// Publish drops the event when the buffer is full.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	select {
	case r.ch <- e:
	default:
	}
	return nil
}

func (r *Recorder) Events() <-chan Event {
	return r.ch
}
