package modcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/module"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
)

// cacheWith lays out a fake module cache with one extraction directory per
// path@version, each containing a LICENSE file with the given content.
func cacheWith(t *testing.T, modules map[module.Version]string) string {
	t.Helper()
	root := t.TempDir()
	for mod, content := range modules {
		escapedPath, err := module.EscapePath(mod.Path)
		require.NoError(t, err)
		escapedVersion, err := module.EscapeVersion(mod.Version)
		require.NoError(t, err)
		dir := filepath.Join(root, escapedPath+"@"+escapedVersion)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte(content), 0o644))
	}
	return root
}

func TestResolveExactVersion(t *testing.T) {
	root := cacheWith(t, map[module.Version]string{
		{Path: "github.com/BurntSushi/toml", Version: "v1.2.3"}: "toml license",
	})

	result, err := New(root).Resolve(t.Context(), bundle.Package{Name: "github.com/BurntSushi/toml", Version: "v1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"toml license"}, result.Texts)
}

func TestResolveFallsBackToNewestCachedVersion(t *testing.T) {
	root := cacheWith(t, map[module.Version]string{
		{Path: "github.com/foo/bar", Version: "v1.0.0"}: "old license",
		{Path: "github.com/foo/bar", Version: "v1.4.0"}: "new license",
		{Path: "github.com/foo/bar", Version: "v1.2.0"}: "middle license",
	})

	result, err := New(root).Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v9.9.9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new license"}, result.Texts)
}

func TestResolveNotCached(t *testing.T) {
	_, err := New(t.TempDir()).Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar", Version: "v1.0.0"})
	require.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestResolveUsesKnownCacheDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("direct license"), 0o644))

	result, err := New(t.TempDir()).Resolve(t.Context(), bundle.Package{Name: "a/b", Version: "v1.0.0", CacheDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"direct license"}, result.Texts)
}

func TestResolveWithoutVersion(t *testing.T) {
	_, err := New(t.TempDir()).Resolve(t.Context(), bundle.Package{Name: "github.com/foo/bar"})
	require.ErrorIs(t, err, resolver.ErrNotFound)
}
