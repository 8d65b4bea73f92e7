// Package filepool is the offline file cache.
//
// A Pool keeps, per site, the files downloaded so far (FileEntry), the
// pending downloads (QueueEntry) and the links from client components to
// the files they use. Remote URLs are normalized with urlx so that every
// variant of a URL maps to one file id.
//
// Downloads are serialized per site: each site has one worker goroutine
// that drains its persistent queue in insertion order. Sites are
// processed in parallel. Bytes are written to the content store before
// the FileEntry is committed, so a FileEntry always refers to complete
// content.
package filepool
