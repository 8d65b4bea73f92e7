package urlx

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// Extensions the LMS commonly serves that the platform MIME table may lack.
var knownTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odt":  "application/vnd.oasis.opendocument.text",
	"zip":  "application/zip",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"html": "text/html",
	"htm":  "text/html",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"epub": "application/epub+zip",
}

// MimeTypeFromExtension maps an extension (without the dot) to a MIME type.
func MimeTypeFromExtension(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "", false
	}
	if t, ok := knownTypes[ext]; ok {
		return t, true
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t, true
	}
	return "", false
}

// GuessExtensionFromURL returns the extension of the file a URL points at,
// preferring the "file" query parameter when present. Only extensions with
// a known MIME type count, so a host suffix such as ".net" is never taken
// for one.
func GuessExtensionFromURL(fileURL string) (string, bool) {
	candidate := fileURL
	if u, err := url.Parse(fileURL); err == nil {
		candidate = u.Path
		if f := u.Query().Get("file"); f != "" {
			candidate = f
		}
	} else if i := strings.IndexAny(candidate, "?#"); i >= 0 {
		candidate = candidate[:i]
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(candidate)), "."))
	if _, ok := MimeTypeFromExtension(ext); !ok {
		return "", false
	}
	return ext, true
}
