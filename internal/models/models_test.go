package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLinks_Union(t *testing.T) {
	a := []Link{{Component: "c1", ComponentID: "1"}, {Component: "c2"}}
	b := []Link{{Component: "c1", ComponentID: "1"}, {Component: "c3", ComponentID: "7"}}

	got := MergeLinks(a, b)

	assert.Equal(t, []Link{
		{Component: "c1", ComponentID: "1"},
		{Component: "c2"},
		{Component: "c3", ComponentID: "7"},
	}, got)
	assert.Len(t, a, 2, "inputs untouched")
}

func TestMergeLinks_SkipsEmptyComponent(t *testing.T) {
	assert.Empty(t, MergeLinks(nil, []Link{{}}))
}

func TestFileState_String(t *testing.T) {
	assert.Equal(t, "not_downloaded", StateNotDownloaded.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "downloaded", StateDownloaded.String())
	assert.Equal(t, "outdated", StateOutdated.String())
	assert.Equal(t, "unknown", FileState(42).String())
}

func TestInt64(t *testing.T) {
	p := Int64(5)
	assert.Equal(t, int64(5), *p)
}
