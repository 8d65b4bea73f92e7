package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMoodle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/webservice/rest/server.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("wstoken") != "tok" {
			_, _ = w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sitename":"School","username":"student"}`))
	})
	mux.HandleFunc("/webservice/pluginfile.php/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file body"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer, context.Context) {
	t.Helper()
	app, out, ctx, _ := newTestAppWithPrompt(t, input)
	return app, out, ctx
}

func newTestAppWithPrompt(t *testing.T, input string) (*App, *bytes.Buffer, context.Context, *[]string) {
	t.Helper()
	prompt := captureOutput(t)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.SyncInterval = 0

	svc, err := service.New(context.Background(), cfg, nil, service.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var out bytes.Buffer
	return NewApp(svc, strings.NewReader(input), &out), &out, ctx, prompt
}

func TestApp_FileLifecycle(t *testing.T) {
	moodle := fakeMoodle(t)
	fileURL := moodle.URL + "/pluginfile.php/5/mod_resource/content/1/notes.pdf"

	script := strings.Join([]string{
		"queue",
		"addsite " + moodle.URL + " tok",
		"get " + fileURL + " mod_resource 9",
		"state " + fileURL,
		"hasfiles mod_resource 9",
		"files mod_resource",
		"queue",
		"sync",
		"invalidate " + fileURL,
		"state " + fileURL,
		"rm " + fileURL,
		"state " + fileURL,
		"hasfiles mod_resource 9",
		"sites",
		"exit",
	}, "\n")

	app, out, ctx, prompt := newTestAppWithPrompt(t, script)
	require.NoError(t, app.Run(ctx))

	assert.Contains(t, strings.Join(*prompt, ""), "Error: "+errNoSite.Error())

	got := out.String()
	assert.Contains(t, got, "registered as "+app.siteID)
	assert.Contains(t, got, "file://")
	assert.Contains(t, got, "downloaded\n")
	assert.Contains(t, got, "yes\n")
	assert.Contains(t, got, "FILE")
	assert.Contains(t, got, "Queue is empty")
	assert.Contains(t, got, "0 files queued")
	assert.Contains(t, got, "outdated\n")
	assert.Contains(t, got, "not_downloaded\n")
	assert.Contains(t, got, "no\n")
	assert.Contains(t, got, "* "+app.siteID)
}

func TestApp_RunReturnsWhenCanceled(t *testing.T) {
	app, _, ctx := newTestApp(t, "sites\n")
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	assert.NoError(t, app.Run(ctx))
}

func TestApp_AddSiteRejectsBadToken(t *testing.T) {
	moodle := fakeMoodle(t)
	app, _, ctx := newTestApp(t, "")

	err := app.addSite(ctx, []string{moodle.URL, "wrong"})
	require.Error(t, err)
	assert.Empty(t, app.siteID)

	require.Error(t, app.addSite(ctx, nil))
}

func TestApp_UseAndDeleteSite(t *testing.T) {
	moodle := fakeMoodle(t)
	app, out, ctx := newTestApp(t, "")

	require.NoError(t, app.addSite(ctx, []string{moodle.URL, "tok"}))
	id := app.siteID
	app.siteID = ""

	require.Error(t, app.useSite(ctx, []string{"nope"}))
	require.NoError(t, app.useSite(ctx, []string{shortID(id)}))
	assert.Equal(t, id, app.siteID)
	assert.Contains(t, app.status(), shortID(id))

	require.NoError(t, app.deleteSite(ctx, []string{id}))
	assert.Empty(t, app.siteID)
	assert.Contains(t, out.String(), "removed")

	all, err := app.svc.Sites.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestArgs(t *testing.T) {
	c, id, err := componentArgs([]string{"mod_page"}, "x")
	require.NoError(t, err)
	assert.Equal(t, "mod_page", c)
	assert.Empty(t, id)

	_, _, err = componentArgs(nil, "x")
	assert.EqualError(t, err, "usage: x")

	u, c, id, err := urlArgs([]string{"https://a/pluginfile.php/1/x", "mod_page", "3"}, "y")
	require.NoError(t, err)
	assert.Equal(t, "https://a/pluginfile.php/1/x", u)
	assert.Equal(t, "mod_page", c)
	assert.Equal(t, "3", id)

	_, _, _, err = urlArgs([]string{"a", "b", "c", "d"}, "y")
	assert.Error(t, err)
}
