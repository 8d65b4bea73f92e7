package wsclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webservice/pluginfile.php/1/mod_resource/content/3/a.pdf", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	rc, err := New().Download(context.Background(), srv.URL+"/webservice/pluginfile.php/1/mod_resource/content/3/a.pdf?token=t")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(b))
}

func TestDownload_HTTPStatusIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New().Download(context.Background(), srv.URL+"/x.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrServer)
	serr, ok := AsServerError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.Contains(t, serr.Error(), "404")
}

func TestDownload_JSONExceptionWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"error":"Invalid token - token not found","errorcode":"invalidtoken","exception":"moodle_exception"}`))
	}))
	defer srv.Close()

	_, err := New().Download(context.Background(), srv.URL+"/webservice/pluginfile.php/1/a.pdf?token=bad")
	require.Error(t, err)
	serr, ok := AsServerError(err)
	require.True(t, ok)
	assert.True(t, serr.IsInvalidToken())
	assert.Equal(t, "Invalid token - token not found", serr.Message)
}

func TestDownload_PlainJSONFileIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"data"}`))
	}))
	defer srv.Close()

	rc, err := New().Download(context.Background(), srv.URL+"/data.json")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.JSONEq(t, `{"name":"data"}`, string(b))
}

func TestDownload_TransportErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New().Download(context.Background(), addr+"/a.pdf?token=secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.NotContains(t, err.Error(), "secret")
}

func TestDownload_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New().Download(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_PostsFormAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, restPath, r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("moodlewsrestformat"))
		assert.Equal(t, "core_webservice_get_site_info", r.URL.Query().Get("wsfunction"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("wstoken"))
		assert.Equal(t, "1", r.PostForm.Get("courseid"))
		_, _ = w.Write([]byte(`{"sitename":"Campus","userid":7}`))
	}))
	defer srv.Close()

	var out struct {
		SiteName string `json:"sitename"`
		UserID   int    `json:"userid"`
	}
	err := New().Call(context.Background(), srv.URL+"/", "tok", "core_webservice_get_site_info",
		url.Values{"courseid": {"1"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Campus", out.SiteName)
	assert.Equal(t, 7, out.UserID)
}

func TestCall_Exception(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"exception":"webservice_access_exception","errorcode":"accessexception","message":"Access control exception"}`))
	}))
	defer srv.Close()

	err := New().Call(context.Background(), srv.URL, "tok", "core_files_get_files", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrServer)
	serr, _ := AsServerError(err)
	assert.Equal(t, "accessexception", serr.ErrorCode)
	assert.Equal(t, "server error accessexception: Access control exception", serr.Error())
}

func TestCall_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New().Call(context.Background(), srv.URL, "tok", "f", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode f response")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c := New(WithHTTPClient(srv.Client()))
	assert.NoError(t, c.Ping(context.Background(), srv.URL), "any answer means reachable")

	srv.Close()
	err := c.Ping(context.Background(), srv.URL)
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestPing_ErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	err := New().Ping(context.Background(), addr+"/?token=secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.NotContains(t, err.Error(), "secret")
}
