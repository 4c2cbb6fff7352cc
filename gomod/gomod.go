// Package gomod enumerates the module dependencies of a Go project by
// running the go tool and turning its module list into package records for
// resolution. It does not parse go.mod syntax itself.
package gomod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/config"
)

// listModule mirrors the fields of the go list -m -json output this package
// consumes.
type listModule struct {
	Path     string
	Version  string
	Main     bool
	Indirect bool
	Dir      string
	Replace  *listModule
}

// List enumerates all module dependencies of the project in dir, in the
// deterministic order the go tool reports them. The main module itself is
// excluded.
func List(ctx context.Context, dir string) ([]bundle.Package, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-m", "-json", "all")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running go list in %q: %w: %s", dir, err, strings.TrimSpace(stderr.String()))
	}
	return Parse(&stdout)
}

// Parse reads a stream of concatenated go list -m -json objects.
func Parse(r io.Reader) ([]bundle.Package, error) {
	var pkgs []bundle.Package
	dec := json.NewDecoder(r)
	for {
		var m listModule
		if err := dec.Decode(&m); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parsing module list: %w", err)
		}
		if m.Main {
			continue
		}
		pkgs = append(pkgs, toPackage(m))
	}
	return pkgs, nil
}

func toPackage(m listModule) bundle.Package {
	effective := m
	if m.Replace != nil {
		effective = *m.Replace
	}
	pkg := bundle.Package{
		Name:    m.Path,
		Version: effective.Version,
	}
	if effective.Version == "" {
		// a directory replacement: the license lives next to the local
		// checkout, not in the module cache
		pkg.LocalDir = effective.Dir
	} else {
		pkg.CacheDir = effective.Dir
	}
	return pkg
}

// ApplyOverrides completes enumerated packages with the declared license
// expressions and repository URLs from the configuration. go.mod files
// carry neither, so configuration is the only source for them.
func ApplyOverrides(pkgs []bundle.Package, overrides map[string]config.Override) {
	for i, pkg := range pkgs {
		override, ok := overrides[pkg.Name]
		if !ok {
			continue
		}
		if pkg.License == "" {
			pkgs[i].License = override.License
		}
		if pkg.Repository == "" {
			pkgs[i].Repository = override.Repository
		}
	}
}
