package dirscan

import (
	"context"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
)

// Local is the highest-priority strategy: license files next to a locally
// checked out copy of the package. Packages without a local directory are
// the common case and simply fall through.
type Local struct{}

var _ resolver.Strategy = Local{}

func (Local) Name() string {
	return "local"
}

func (Local) Source() bundle.Source {
	return bundle.SourceLocalDirectory
}

func (Local) Resolve(_ context.Context, pkg bundle.Package) (*resolver.Result, error) {
	if pkg.LocalDir == "" {
		return nil, resolver.ErrNotFound
	}
	texts, err := Texts(pkg.LocalDir)
	if err != nil {
		return nil, err
	}
	return &resolver.Result{Texts: texts}, nil
}
