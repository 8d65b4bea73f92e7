package content

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	return d
}

func TestDisk_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	d := newDisk(t)

	key, n, err := d.Put(ctx, "s1", "file_ab12", "pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "s1/file_ab12.pdf", key)
	assert.Equal(t, int64(8), n)

	rc, err := d.Open(ctx, key)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4", string(b))

	require.NoError(t, d.Delete(ctx, key))
	require.NoError(t, d.Delete(ctx, key), "deleting twice is fine")

	_, err = d.Open(ctx, key)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDisk_DeleteSite(t *testing.T) {
	ctx := context.Background()
	d := newDisk(t)

	a, _, err := d.Put(ctx, "s1", "a", "", strings.NewReader("a"))
	require.NoError(t, err)
	b, _, err := d.Put(ctx, "s2", "b", "txt", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, d.DeleteSite(ctx, "s1"))

	_, err = d.Open(ctx, a)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	rc, err := d.Open(ctx, b)
	require.NoError(t, err)
	_ = rc.Close()
}

func TestDisk_CanceledPutLeavesNothing(t *testing.T) {
	d := newDisk(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Put(ctx, "s1", "a", "pdf", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(filepath.Join(d.Root(), "s1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDisk_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	d := newDisk(t)

	_, err := d.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)

	assert.Error(t, d.DeleteSite(ctx, ".."))
}

func TestDisk_URL(t *testing.T) {
	d := newDisk(t)
	u, err := d.URL(context.Background(), "s1/a.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
	assert.True(t, strings.HasSuffix(u, "/s1/a.pdf"))
}

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		site, file, ext string
		key             string
	}{
		{"s1", "report_0a1b", "pdf", "s1/report_0a1b.pdf"},
		{"s1", "0a1b", "", "s1/0a1b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.key, Key(tt.site, tt.file, tt.ext))
		site, file, ok := SplitKey(tt.key)
		require.True(t, ok)
		assert.Equal(t, tt.site, site)
		assert.Equal(t, tt.file, file)
	}

	for _, bad := range []string{"", "noslash", "/x", "s1/", "a/b/c"} {
		_, _, ok := SplitKey(bad)
		assert.False(t, ok, bad)
	}
}
