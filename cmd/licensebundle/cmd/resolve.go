package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"licenses.software/bundle/bundle"
	"licenses.software/bundle/githubapi"
	"licenses.software/bundle/gomod"
	"licenses.software/bundle/resolver"
	"licenses.software/bundle/resolver/dirscan"
	"licenses.software/bundle/resolver/modcache"
	"licenses.software/bundle/spdx"
)

const (
	FlagDir              = "dir"
	FlagOutput           = "output"
	FlagFailOnUnresolved = "fail-on-unresolved"
)

func NewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve all dependency licenses and write the bundle artifact",
		Long: `Resolve enumerates the module dependencies of the project, determines the
license text of each one, and writes the aggregate into the bundle artifact.

An unresolved package is reported but does not fail the run unless
--fail-on-unresolved (or failOnUnresolved in the configuration) is set. The
run only fails when the artifact itself cannot be produced.`,
		Example: `
licensebundle resolve
licensebundle resolve --dir ./cmd/server -o build/LICENSE-3RD-PARTY
licensebundle resolve --fail-on-unresolved`,
		RunE:              runResolve,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cmd.Flags().String(FlagDir, ".", "project directory to enumerate dependencies in")
	cmd.Flags().StringP(FlagOutput, "o", "", "artifact destination (overrides the configured output)")
	cmd.Flags().Bool(FlagFailOnUnresolved, false, "fail when any non-ignored package stays unresolved")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := Root.Configuration

	if output, _ := cmd.Flags().GetString(FlagOutput); output != "" {
		cfg.Output = output
	}
	if fail, _ := cmd.Flags().GetBool(FlagFailOnUnresolved); fail {
		cfg.FailOnUnresolved = true
	}

	dir, err := cmd.Flags().GetString(FlagDir)
	if err != nil {
		return err
	}
	pkgs, err := gomod.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("enumerating dependencies: %w", err)
	}
	gomod.ApplyOverrides(pkgs, cfg.Overrides)
	slog.InfoContext(ctx, "enumerated dependencies", slog.Int("packages", len(pkgs)))

	remote, err := githubapi.NewClient(
		githubapi.WithToken(cfg.GitHubToken),
		githubapi.WithTimeout(cfg.RequestTimeout.Value()),
	)
	if err != nil {
		return err
	}
	r, err := resolver.New(cfg,
		dirscan.Local{},
		modcache.New(""),
		remote,
		spdx.Strategy{},
	)
	if err != nil {
		return err
	}

	b, err := r.Resolve(ctx, pkgs)
	if err != nil {
		return err
	}
	if err := b.Persist(cfg.Output); err != nil {
		return err
	}

	resolved := 0
	for _, res := range b.Resolutions() {
		if res.Source != bundle.SourceUnresolved {
			resolved++
		}
	}
	slog.InfoContext(ctx, "license bundle written",
		slog.String("output", cfg.Output),
		slog.Int("resolved", resolved),
		slog.Int("unresolved", b.Len()-resolved),
	)
	return nil
}
