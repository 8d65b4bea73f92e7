package urlx

import (
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filepool/internal/common"
	"golang.org/x/crypto/blake2b"
)

const (
	pluginfileMarker    = "pluginfile.php"
	pluginfilePath      = "/pluginfile.php"
	wsPluginfilePath    = "/webservice/pluginfile.php"
	revisionPlaceholder = "/content/0/"
	maxFilenameLength   = 64
)

var (
	revisionRe = regexp.MustCompile(`/content/([0-9]+)/`)
	unsafeRe   = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

	// Query parameters that change between requests for the same file.
	volatileParams = []string{common.TokenQueryParam, "forcedownload", "preview", "offline"}
)

// IsPluginfileURL reports whether fileURL points at remote course content.
func IsPluginfileURL(fileURL string) bool {
	return strings.Contains(fileURL, pluginfileMarker)
}

// FixPluginfileURL turns a pluginfile URL into an absolute webservice URL
// carrying the site token. Protocol-relative and site-relative URLs are
// resolved against siteURL. Any other URL is returned unchanged.
func FixPluginfileURL(siteURL, token, fileURL string) string {
	if !IsPluginfileURL(fileURL) {
		return fileURL
	}

	resolved := resolveAgainstSite(siteURL, fileURL)
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}

	if !strings.Contains(u.Path, wsPluginfilePath) {
		u.Path = strings.Replace(u.Path, pluginfilePath, wsPluginfilePath, 1)
		if u.RawPath != "" {
			u.RawPath = strings.Replace(u.RawPath, pluginfilePath, wsPluginfilePath, 1)
		}
	}

	if token != "" {
		q := u.Query()
		if q.Get(common.TokenQueryParam) == "" {
			q.Set(common.TokenQueryParam, token)
			u.RawQuery = q.Encode()
		}
	}

	return u.String()
}

func resolveAgainstSite(siteURL, fileURL string) string {
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL
	}

	base, err := url.Parse(strings.TrimRight(siteURL, "/") + "/")
	if err != nil || base.Scheme == "" {
		return fileURL
	}
	ref, err := url.Parse(fileURL)
	if err != nil {
		return fileURL
	}
	return base.ResolveReference(ref).String()
}

// FileIDByURL derives the pool identifier of a remote file. Two URLs that
// differ only by token, forcedownload/preview/offline flags or revision get
// the same id; the id keeps a readable filename prefix when one exists.
func FileIDByURL(fileURL string) string {
	canonical := canonicalURL(RemoveRevisionFromURL(fileURL))

	sum := blake2b.Sum256([]byte(canonical))
	digest := hex.EncodeToString(sum[:16])

	if name := guessFilename(canonical); name != "" {
		return name + "_" + digest
	}
	return digest
}

// StripToken removes the site token from fileURL. Unparsable URLs are
// returned unchanged.
func StripToken(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return fileURL
	}
	q := u.Query()
	if !q.Has(common.TokenQueryParam) {
		return fileURL
	}
	q.Del(common.TokenQueryParam)
	u.RawQuery = q.Encode()
	return u.String()
}

func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	q := u.Query()
	if IsPluginfileURL(raw) {
		for _, p := range volatileParams {
			q.Del(p)
		}
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(u.Path)
	if enc := q.Encode(); enc != "" {
		b.WriteByte('?')
		b.WriteString(enc)
	}
	return b.String()
}

func guessFilename(raw string) string {
	var name string
	if u, err := url.Parse(raw); err == nil {
		if f := u.Query().Get("file"); f != "" && IsPluginfileURL(raw) {
			name = path.Base(f)
		} else if u.Path != "" {
			name = path.Base(u.Path)
		}
	}
	if name == "/" || name == "." {
		return ""
	}

	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.Trim(unsafeRe.ReplaceAllString(name, "_"), "_")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

// RevisionFromURL extracts the numeric /content/<n>/ segment.
func RevisionFromURL(fileURL string) (int64, bool) {
	m := revisionRe.FindStringSubmatch(fileURL)
	if m == nil {
		return 0, false
	}
	rev, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return rev, true
}

// RemoveRevisionFromURL rewrites the revision segment to /content/0/.
func RemoveRevisionFromURL(fileURL string) string {
	return revisionRe.ReplaceAllString(fileURL, revisionPlaceholder)
}
