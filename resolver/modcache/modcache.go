// Package modcache resolves license files from the version-keyed extraction
// directories of the Go module cache. Many dependencies are not checked out
// locally, but their license file already sits in the downloaded cache
// copy, so no network call is needed.
package modcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/mod/module"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
	"licenses.software/bundle/resolver/dirscan"
)

// Strategy scans the module cache below Root.
type Strategy struct {
	root string
}

var _ resolver.Strategy = &Strategy{}

// New creates the module cache strategy. An empty root is resolved from the
// environment the way the go tool does: GOMODCACHE, then GOPATH/pkg/mod,
// then ~/go/pkg/mod.
func New(root string) *Strategy {
	if root == "" {
		root = defaultRoot()
	}
	return &Strategy{root: root}
}

func defaultRoot() string {
	if cache := os.Getenv("GOMODCACHE"); cache != "" {
		return cache
	}
	if gopath := os.Getenv("GOPATH"); gopath != "" {
		return filepath.Join(gopath, "pkg", "mod")
	}
	if out, err := exec.Command("go", "env", "GOMODCACHE").Output(); err == nil {
		if cache := strings.TrimSpace(string(out)); cache != "" {
			return cache
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "go", "pkg", "mod")
}

func (s *Strategy) Name() string {
	return "modcache"
}

func (s *Strategy) Source() bundle.Source {
	return bundle.SourceModuleCache
}

func (s *Strategy) Resolve(ctx context.Context, pkg bundle.Package) (*resolver.Result, error) {
	if pkg.CacheDir != "" {
		texts, err := dirscan.Texts(pkg.CacheDir)
		if err != nil {
			return nil, err
		}
		return &resolver.Result{Texts: texts}, nil
	}
	if s.root == "" || pkg.Name == "" || pkg.Version == "" {
		return nil, resolver.ErrNotFound
	}

	escapedPath, err := module.EscapePath(pkg.Name)
	if err != nil {
		return nil, fmt.Errorf("escaping module path %q: %w", pkg.Name, err)
	}
	escapedVersion, err := module.EscapeVersion(pkg.Version)
	if err != nil {
		return nil, fmt.Errorf("escaping module version %q: %w", pkg.Version, err)
	}

	texts, err := dirscan.Texts(filepath.Join(s.root, escapedPath+"@"+escapedVersion))
	if !errors.Is(err, resolver.ErrNotFound) {
		if err != nil {
			return nil, err
		}
		return &resolver.Result{Texts: texts}, nil
	}

	// exact version not cached: fall back to the newest cached version
	newest, ok := s.newestCachedVersion(ctx, escapedPath, pkg)
	if !ok {
		return nil, resolver.ErrNotFound
	}
	texts, err = dirscan.Texts(newest)
	if err != nil {
		return nil, err
	}
	return &resolver.Result{Texts: texts}, nil
}

// newestCachedVersion locates the extraction directory of the newest cached
// version of the escaped module path, if any version is cached at all.
func (s *Strategy) newestCachedVersion(ctx context.Context, escapedPath string, pkg bundle.Package) (string, bool) {
	parent := filepath.Join(s.root, filepath.Dir(escapedPath))
	prefix := filepath.Base(escapedPath) + "@"

	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}

	var newest *semver.Version
	var dir string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		raw, err := module.UnescapeVersion(strings.TrimPrefix(entry.Name(), prefix))
		if err != nil {
			continue
		}
		version, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if newest == nil || version.GreaterThan(newest) {
			newest = version
			dir = filepath.Join(parent, entry.Name())
		}
	}
	if newest == nil {
		return "", false
	}
	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "exact version not cached, using newest cached version",
		slog.String("realm", resolver.Realm),
		slog.String("package", pkg.ID()),
		slog.String("cached", newest.Original()),
	)
	return dir, true
}
