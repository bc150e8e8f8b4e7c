package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanodrive/common"
)

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/", CanonicalPath(nil))
	assert.Equal(t, "/", CanonicalPath([]string{}))
	assert.Equal(t, "/a", CanonicalPath([]string{"a"}))
	assert.Equal(t, "/a/b", CanonicalPath([]string{"a", "b"}))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/Docs", JoinPath("/", "Docs"))
	assert.Equal(t, "/Docs", JoinPath("", "Docs"))
	assert.Equal(t, "/Docs/2024", JoinPath("/Docs", "2024"))
}

func TestSplitPathRoundTrip(t *testing.T) {
	for _, segments := range [][]string{nil, {"a"}, {"a", "b", "c"}, {"with space", "ünï"}} {
		got, err := SplitPath(CanonicalPath(segments))
		require.NoError(t, err)
		assert.Equal(t, len(segments), len(got))
		for i := range segments {
			assert.Equal(t, segments[i], got[i])
		}
	}
}

func TestSplitPathRejectsMalformed(t *testing.T) {
	for _, path := range []string{"a/b", "/a//b", "/a/", "/../etc", "/a/./b"} {
		_, err := SplitPath(path)
		assert.True(t, common.IsValidation(err), path)
	}
}

func TestIsWithinAndRebase(t *testing.T) {
	assert.True(t, IsWithin("/Photos", "/Photos"))
	assert.True(t, IsWithin("/Photos/2024", "/Photos"))
	assert.False(t, IsWithin("/PhotosOld", "/Photos"))
	assert.True(t, IsWithin("/anything", "/"))

	assert.Equal(t, "/Pics", Rebase("/Photos", "/Photos", "/Pics"))
	assert.Equal(t, "/Pics/2024", Rebase("/Photos/2024", "/Photos", "/Pics"))
	assert.Equal(t, "/PhotosOld", Rebase("/PhotosOld", "/Photos", "/Pics"))
}

func TestNodeChildPath(t *testing.T) {
	root := NewFolder("u1", "/", "Photos")
	assert.Equal(t, "/Photos", root.ChildPath())
	nested := NewFolder("u1", "/Photos", "2024")
	assert.Equal(t, "/Photos/2024", nested.ChildPath())
	assert.True(t, nested.IsFolder())
	assert.False(t, nested.IsFile())
}
