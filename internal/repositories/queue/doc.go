// Package queue persists pending downloads.
//
// Entries are keyed by (site, file) and ordered per site by an insertion
// sequence, so the worker of a site drains them first-in first-out and a
// restart resumes where it stopped. Upserting an existing entry keeps its
// position.
package queue
