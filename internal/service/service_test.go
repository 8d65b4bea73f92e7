package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMoodle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/webservice/rest/server.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sitename":"School","username":"student"}`))
	})
	mux.HandleFunc("/webservice/pluginfile.php/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("file body"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.PublicBaseURL = "http://127.0.0.1:8765"
	return cfg
}

func TestService_DownloadsThroughRegisteredSite(t *testing.T) {
	moodle := fakeMoodle(t)
	cfg := testConfig(t)
	ctx := context.Background()

	s, err := New(ctx, cfg, nil, Options{SignedLinks: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	site, err := s.Sites.Add(ctx, moodle.URL, "tok")
	require.NoError(t, err)

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	src, err := s.Pool.GetSrcByURL(wctx, site.ID, moodle.URL+"/pluginfile.php/5/mod_resource/content/2/notes.txt", "mod_resource", "9", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, "http://127.0.0.1:8765/files/"+site.ID+"/"), src)
	assert.Contains(t, src, "token=")

	st, err := s.Pool.GetFileStateByURL(ctx, site.ID, moodle.URL+"/pluginfile.php/5/mod_resource/content/2/notes.txt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateDownloaded, st)

	require.NoError(t, s.Ready(ctx))
	iv, err := s.Cron.Interval(SyncHook)
	require.NoError(t, err)
	assert.Equal(t, cfg.SyncInterval, iv)
}

func TestService_PlainLinksWithoutServer(t *testing.T) {
	moodle := fakeMoodle(t)
	cfg := testConfig(t)
	cfg.StoreDriver = "leveldb"
	cfg.SyncInterval = 0
	ctx := context.Background()

	s, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	site, err := s.Sites.Add(ctx, moodle.URL, "tok")
	require.NoError(t, err)

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	src, err := s.Pool.GetSrcByURL(wctx, site.ID, moodle.URL+"/pluginfile.php/5/a.pdf", "", "", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, "file://"), src)

	_, err = s.Cron.Interval(SyncHook)
	assert.Error(t, err, "sync hook disabled")
}

func TestService_PingFollowsSites(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ping(ctx), "no sites means online")

	require.NoError(t, s.Store.Sites().Upsert(ctx, &models.Site{ID: "dead", URL: "http://127.0.0.1:1", Token: "t"}))
	assert.Error(t, s.ping(ctx))

	moodle := fakeMoodle(t)
	require.NoError(t, s.Store.Sites().Upsert(ctx, &models.Site{ID: "live", URL: moodle.URL, Token: "t"}))
	assert.NoError(t, s.ping(ctx))
}

func TestService_StartAndStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.PingInterval = 10 * time.Millisecond

	s, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	require.NoError(t, s.Close())
}
