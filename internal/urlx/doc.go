// Package urlx normalizes remote file URLs for the file pool.
//
// # Overview
//
// Remote course content is served through "pluginfile" URLs. The same
// file is reachable through many spellings: with or without the
// webservice prefix, with a site token, with a forcedownload flag, or with
// a different revision segment (/content/<n>/). The file pool needs one
// stable identifier per file, plus the revision as a separate freshness
// marker.
//
// Key Functions
//
//   - FixPluginfileURL     : absolute, token-bearing webservice URL for a site
//   - FileIDByURL          : stable identifier, independent of token/flags/revision
//   - RevisionFromURL      : numeric /content/<n>/ segment, if any
//   - RemoveRevisionFromURL: rewrites the segment to /content/0/
//   - GuessExtensionFromURL: known file extension of the path, if any
//
// URLs that are not pluginfile URLs pass through FixPluginfileURL
// unchanged; that is not an error.
package urlx
