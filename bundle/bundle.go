// Package bundle defines the persisted license bundle: one resolution per
// dependency package, serialized into a schema-tagged artifact that the
// consuming program embeds and reads back at startup.
package bundle

import (
	"fmt"
)

// Source identifies which retrieval strategy produced the texts of a
// Resolution.
type Source string

const (
	// SourceLocalDirectory means the texts were read from license files next
	// to the package's manifest on the local filesystem.
	SourceLocalDirectory Source = "LocalDirectory"
	// SourceModuleCache means the texts were read from the version-keyed
	// extraction directory in the module cache.
	SourceModuleCache Source = "ModuleCache"
	// SourceRemoteRepository means the texts were returned by the hosting
	// site's license detection endpoint.
	SourceRemoteRepository Source = "RemoteRepository"
	// SourceStaticTable means the texts were looked up from the bundled
	// SPDX identifier table.
	SourceStaticTable Source = "StaticTable"
	// SourceOverride means the texts were forced through configuration,
	// either directly or by copying them from another package.
	SourceOverride Source = "Override"
	// SourceUnresolved means no strategy produced a text. A resolution has
	// this source exactly when it has no texts.
	SourceUnresolved Source = "Unresolved"
)

// Package identifies a single dependency whose license is to be resolved.
// It is immutable input to a resolution run.
type Package struct {
	// Name is the module path of the dependency.
	Name string `json:"name"`
	// Version is the resolved module version.
	Version string `json:"version"`
	// License is the declared SPDX license expression, if known.
	License string `json:"license,omitempty"`
	// Repository is the declared source repository URL, if known.
	Repository string `json:"repository,omitempty"`

	// LocalDir is the directory holding a locally checked out copy of the
	// package, if any. Not persisted.
	LocalDir string `json:"-"`
	// CacheDir is the version-specific extraction directory in the module
	// cache, if known. Not persisted.
	CacheDir string `json:"-"`
}

// ID returns the name@version identity of the package.
func (p Package) ID() string {
	return fmt.Sprintf("%s@%s", p.Name, p.Version)
}

// Resolution is the outcome of resolving one package. Texts holds one entry
// per discovered license file or text and is empty exactly when Source is
// SourceUnresolved.
type Resolution struct {
	Package
	Source Source   `json:"source"`
	Texts  []string `json:"texts"`
}

// NewResolution builds a Resolution and keeps the source/texts invariant:
// nil or empty texts force SourceUnresolved, non-empty texts with
// SourceUnresolved are rejected by marshalling later, so callers should pass
// a real source whenever texts exist.
func NewResolution(pkg Package, source Source, texts []string) Resolution {
	if len(texts) == 0 {
		return Resolution{Package: pkg, Source: SourceUnresolved, Texts: []string{}}
	}
	return Resolution{Package: pkg, Source: source, Texts: texts}
}

// Bundle is the ordered collection of resolutions of one run, in the order
// the packages were supplied by the enumerator.
type Bundle struct {
	resolutions []Resolution
	byID        map[string]int
}

// New builds a Bundle from resolutions, preserving their order. Texts slices
// are normalized so that an unresolved entry always carries an empty,
// non-nil slice.
func New(resolutions []Resolution) *Bundle {
	b := &Bundle{
		resolutions: make([]Resolution, len(resolutions)),
		byID:        make(map[string]int, len(resolutions)),
	}
	for i, res := range resolutions {
		if res.Texts == nil {
			res.Texts = []string{}
		}
		b.resolutions[i] = res
		b.byID[res.ID()] = i
	}
	return b
}

// Len returns the number of resolutions in the bundle.
func (b *Bundle) Len() int {
	return len(b.resolutions)
}

// Resolutions returns the resolutions in input order. The returned slice is
// shared and must not be mutated.
func (b *Bundle) Resolutions() []Resolution {
	return b.resolutions
}

// Lookup returns the license texts of the package identified by name and
// version. The second return value reports whether the package is part of
// the bundle at all; an unresolved package is found with zero texts.
func (b *Bundle) Lookup(name, version string) ([]string, bool) {
	i, ok := b.byID[Package{Name: name, Version: version}.ID()]
	if !ok {
		return nil, false
	}
	return b.resolutions[i].Texts, true
}

// Unresolved returns the packages that no strategy could resolve, in input
// order.
func (b *Bundle) Unresolved() []Package {
	var pkgs []Package
	for _, res := range b.resolutions {
		if res.Source == SourceUnresolved {
			pkgs = append(pkgs, res.Package)
		}
	}
	return pkgs
}
