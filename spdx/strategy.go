package spdx

import (
	"context"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/resolver"
)

// Strategy resolves licenses from the declared SPDX expression of a package
// against the embedded table. It is the last strategy in the default chain:
// it needs no I/O but yields generic texts rather than the package's own
// license files.
type Strategy struct{}

var _ resolver.Strategy = Strategy{}

func (Strategy) Name() string {
	return "spdx"
}

func (Strategy) Source() bundle.Source {
	return bundle.SourceStaticTable
}

func (Strategy) Resolve(_ context.Context, pkg bundle.Package) (*resolver.Result, error) {
	if pkg.License == "" {
		return nil, resolver.ErrNotFound
	}
	texts := Texts(pkg.License)
	if len(texts) == 0 {
		return nil, resolver.ErrNotFound
	}
	return &resolver.Result{Texts: texts}, nil
}
