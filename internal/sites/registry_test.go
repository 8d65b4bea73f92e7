package sites

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/storage"
	"github.com/dmitrijs2005/filepool/internal/wsclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemover struct {
	removed []string
	err     error
}

func (f *fakeRemover) RemoveSite(_ context.Context, siteID string) error {
	f.removed = append(f.removed, siteID)
	return f.err
}

func moodle(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webservice/rest/server.php", r.URL.Path)
		assert.Equal(t, "core_webservice_get_site_info", r.URL.Query().Get("wsfunction"))
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("wstoken") != "good" {
			_, _ = w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sitename":"Test site","siteurl":"` + "http://" + r.Host + `","username":"student","userid":7}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRegistry(t *testing.T) (*Registry, *fakeRemover, string) {
	t.Helper()
	st, err := storage.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := moodle(t)
	rm := &fakeRemover{}
	return NewRegistry(st.Sites(), wsclient.New(), rm, nil), rm, srv.URL
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://school.example.org/", "https://school.example.org", false},
		{"school.example.org/moodle//", "https://school.example.org/moodle", false},
		{"  http://h:8080/m?x=1#f ", "http://h:8080/m", false},
		{"ftp://h", "", true},
		{"", "", true},
		{"https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdd_VerifiesToken(t *testing.T) {
	r, _, siteURL := newRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, siteURL, "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrServer)

	_, err = r.Add(ctx, siteURL, "")
	assert.ErrorIs(t, err, common.ErrorInvalidToken)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	s, err := r.Add(ctx, siteURL+"/", "good")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, siteURL, s.URL)
	assert.Equal(t, "good", s.Token)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.URL, got.URL)
}

func TestAdd_SameURLKeepsID(t *testing.T) {
	r, _, siteURL := newRegistry(t)
	ctx := context.Background()

	first, err := r.Add(ctx, siteURL, "good")
	require.NoError(t, err)
	second, err := r.Add(ctx, siteURL+"/", "good")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDelete_CascadesToPool(t *testing.T) {
	r, rm, siteURL := newRegistry(t)
	ctx := context.Background()

	s, err := r.Add(ctx, siteURL, "good")
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, s.ID))
	assert.Equal(t, []string{s.ID}, rm.removed)

	_, err = r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, r.Delete(ctx, s.ID), common.ErrorNotFound)
	assert.Len(t, rm.removed, 1)
}
