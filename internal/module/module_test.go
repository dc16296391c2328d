package module

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverLoadsRelativeToRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/scripts/math.rvn", []byte("var PI = 3;"), 0o644))

	r := NewResolver(fs, "/scripts")
	src, err := r.Load("math")
	require.NoError(t, err)
	assert.Equal(t, "var PI = 3;", src)
}

func TestResolverAppendsDefaultExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.rvn", []byte("1;"), 0o644))

	r := NewResolver(fs, "/")
	src, err := r.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "1;", src)
}

func TestResolverHonorsExplicitExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.raven", []byte("2;"), 0o644))

	r := NewResolver(fs, "/")
	src, err := r.Load("a.raven")
	require.NoError(t, err)
	assert.Equal(t, "2;", src)
}

func TestResolverAbsolutePathIgnoresRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/elsewhere/b.rvn", []byte("3;"), 0o644))

	r := NewResolver(fs, "/scripts")
	src, err := r.Load("/elsewhere/b.rvn")
	require.NoError(t, err)
	assert.Equal(t, "3;", src)
}

func TestResolverMissingFileIsError(t *testing.T) {
	r := NewResolver(afero.NewMemMapFs(), "/")
	_, err := r.Load("nope")
	assert.Error(t, err)
}

func TestResolverCachesAfterFirstLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.rvn", []byte("original;"), 0o644))

	r := NewResolver(fs, "/")
	first, err := r.Load("c")
	require.NoError(t, err)
	assert.Equal(t, "original;", first)

	// Mutate the backing file; a cached resolver must not re-read it.
	require.NoError(t, afero.WriteFile(fs, "/c.rvn", []byte("changed;"), 0o644))
	second, err := r.Load("c")
	require.NoError(t, err)
	assert.Equal(t, "original;", second)
}
