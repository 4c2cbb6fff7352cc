// Package resolver drives license resolution: for every dependency package
// it tries a fixed, ordered chain of retrieval strategies until one produces
// license texts, and collects the outcomes into a bundle in input order.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strings"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/errgroup"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/config"
)

const Realm = "resolver"

// ErrNotFound is returned by a Strategy when it has no license texts for a
// package. It is never surfaced to callers of Resolve; the orchestrator
// advances to the next strategy instead.
var ErrNotFound = errors.New("license not found")

// Result is a successful strategy outcome.
type Result struct {
	// Texts holds one entry per discovered license file or text.
	Texts []string
	// License optionally carries the SPDX identifier the source reported
	// for the package, for sources that classify licenses themselves.
	License string
}

// Strategy is one retrieval method for license texts. Implementations
// report missing licenses with ErrNotFound; any other error is treated as a
// soft failure by the orchestrator as well, but is logged at warning level.
type Strategy interface {
	// Name is the stable identifier used in configuration overrides.
	Name() string
	// Source is recorded on resolutions produced by this strategy.
	Source() bundle.Source
	// Resolve attempts to retrieve the license texts for pkg.
	Resolve(ctx context.Context, pkg bundle.Package) (*Result, error)
}

// Resolver resolves packages against an ordered strategy chain. It is
// stateless across calls apart from the configuration it was built with and
// may be used concurrently.
type Resolver struct {
	cfg        *config.Config
	strategies []Strategy
}

// New creates a Resolver. The strategy order given here is the priority
// order; it is never reordered per package except through an explicit
// configured strategy override.
func New(cfg *config.Config, strategies ...Strategy) (*Resolver, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	known := make([]string, 0, len(strategies))
	for _, s := range strategies {
		known = append(known, s.Name())
	}
	for name, override := range cfg.Overrides {
		if override.Strategy != "" && !slices.Contains(known, override.Strategy) {
			return nil, fmt.Errorf("override for %q forces unknown strategy %q (known: %s)", name, override.Strategy, strings.Join(known, ", "))
		}
	}
	return &Resolver{cfg: cfg, strategies: strategies}, nil
}

// Resolve resolves all packages and returns one resolution per input, in
// input order. Packages are resolved on parallel workers; an unresolvable
// package is a normal outcome unless the configuration demands otherwise.
// The only fatal conditions are context cancellation, a configured license
// copy that references packages not part of the run, and, when configured,
// unresolved packages.
func (r *Resolver) Resolve(ctx context.Context, pkgs []bundle.Package) (*bundle.Bundle, error) {
	resolutions := make([]bundle.Resolution, len(pkgs))

	limit := r.cfg.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, pkg := range pkgs {
		eg.Go(func() error {
			resolutions[i] = r.resolveOne(gctx, pkg)
			return gctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("license resolution aborted: %w", err)
	}

	if err := r.copyLicenses(resolutions); err != nil {
		return nil, err
	}
	if err := r.reportUnresolved(ctx, resolutions); err != nil {
		return nil, err
	}
	return bundle.New(resolutions), nil
}

func (r *Resolver) resolveOne(ctx context.Context, pkg bundle.Package) bundle.Resolution {
	logger := slogcontext.FromCtx(ctx).With(
		slog.String("realm", Realm),
		slog.String("package", pkg.ID()),
	)

	override, hasOverride := r.cfg.Overrides[pkg.Name]
	if hasOverride && len(override.Texts) > 0 {
		logger.Log(ctx, slog.LevelInfo, "using configured license texts")
		return bundle.NewResolution(pkg, bundle.SourceOverride, override.Texts)
	}

	strategies := r.strategies
	if hasOverride && override.Strategy != "" {
		for _, s := range r.strategies {
			if s.Name() == override.Strategy {
				strategies = []Strategy{s}
				break
			}
		}
	}

	for _, s := range strategies {
		result, err := s.Resolve(ctx, pkg)
		switch {
		case errors.Is(err, ErrNotFound):
			logger.Log(ctx, slog.LevelDebug, "license not found", slog.String("strategy", s.Name()))
			continue
		case err != nil:
			// soft failure: report it and fall through to the next strategy
			logger.Log(ctx, slog.LevelWarn, "strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		case result == nil || len(result.Texts) == 0:
			continue
		}
		logger.Log(ctx, slog.LevelInfo, "license resolved",
			slog.String("strategy", s.Name()),
			slog.Int("texts", len(result.Texts)),
		)
		res := bundle.NewResolution(pkg, s.Source(), result.Texts)
		if res.License == "" && result.License != "" {
			res.License = result.License
		}
		return res
	}

	logger.Log(ctx, slog.LevelDebug, "no strategy resolved a license")
	return bundle.NewResolution(pkg, bundle.SourceUnresolved, nil)
}

// copyLicenses applies the configured license copying: each copier package
// takes over the resolved texts of its copied package. Unknown names on
// either side are configuration errors.
func (r *Resolver) copyLicenses(resolutions []bundle.Resolution) error {
	for _, copier := range slices.Sorted(maps.Keys(r.cfg.CopyLicense)) {
		copied := r.cfg.CopyLicense[copier]
		from := -1
		for i, res := range resolutions {
			// the largest text set wins when several versions of the
			// copied package are present
			if res.Name == copied && (from < 0 || len(res.Texts) > len(resolutions[from].Texts)) {
				from = i
			}
		}
		if from < 0 {
			return fmt.Errorf("license copy source %q not found in package list", copied)
		}
		applied := false
		for i, res := range resolutions {
			if res.Name != copier {
				continue
			}
			resolutions[i] = bundle.NewResolution(res.Package, bundle.SourceOverride, resolutions[from].Texts)
			applied = true
		}
		if !applied {
			return fmt.Errorf("license copy target %q not found in package list", copier)
		}
	}
	return nil
}

func (r *Resolver) reportUnresolved(ctx context.Context, resolutions []bundle.Resolution) error {
	var unresolved []string
	for _, res := range resolutions {
		if res.Source == bundle.SourceUnresolved && !slices.Contains(r.cfg.Ignore, res.Name) {
			unresolved = append(unresolved, res.ID())
		}
	}
	if len(unresolved) == 0 {
		return nil
	}
	if r.cfg.FailOnUnresolved {
		return fmt.Errorf("no licenses found for: %s", strings.Join(unresolved, ", "))
	}
	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelWarn, "no licenses found",
		slog.String("realm", Realm),
		slog.String("packages", strings.Join(unresolved, ", ")),
	)
	return nil
}
