package localserve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/filepool/internal/auth"
	"github.com/dmitrijs2005/filepool/internal/content"
)

// DefaultLinkTTL is how long a signed file link stays valid.
const DefaultLinkTTL = time.Hour

// Linker wraps a content store so that URL returns a signed link to this
// server instead of the store's own reference.
type Linker struct {
	content.Store
	baseURL string
	secret  []byte
	ttl     time.Duration
}

func NewLinker(store content.Store, baseURL string, secret []byte, ttl time.Duration) *Linker {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &Linker{Store: store, baseURL: strings.TrimRight(baseURL, "/"), secret: secret, ttl: ttl}
}

func (l *Linker) URL(_ context.Context, key string) (string, error) {
	siteID, fileID, ok := content.SplitKey(key)
	if !ok {
		return "", fmt.Errorf("invalid content key %q", key)
	}
	token, err := auth.GenerateToken(siteID, fileID, l.secret, l.ttl)
	if err != nil {
		return "", err
	}
	return l.baseURL + "/files/" + key + "?" + url.Values{"token": {token}}.Encode(), nil
}
