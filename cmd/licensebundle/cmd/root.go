package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"licenses.software/bundle/config"
	"licenses.software/bundle/internal/log"
)

const FlagConfig = "config"

// CLI is the root command together with the configuration loaded for the
// invocation.
type CLI struct {
	*cobra.Command
	Configuration *config.Config
}

// Root represents the base command when called without any subcommands.
var Root *CLI

func init() {
	Root = &CLI{
		Command: &cobra.Command{
			Use:   "licensebundle [sub-command]",
			Short: "Collect third-party license texts for a Go project",
			Long: `licensebundle resolves the license text of every module dependency of a Go
project and writes the result into a single versioned artifact, so that the
final binary can ship its third-party license notices via go:embed.

Licenses are looked up, per package, from the local checkout, the module
cache, the hosting site's license detection API, and a bundled SPDX text
table, in that order.`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmd.Help()
			},
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				logger, err := log.GetBaseLogger(cmd)
				if err != nil {
					return fmt.Errorf("could not retrieve logger: %w", err)
				}
				slog.SetDefault(logger)
				cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))

				cfg, err := config.Load(cmd.Flag(FlagConfig).Value.String())
				if err != nil {
					return fmt.Errorf("could not retrieve configuration: %w", err)
				}
				Root.Configuration = cfg

				return nil
			},
			DisableAutoGenTag: true,
		},
	}

	Root.PersistentFlags().String(FlagConfig, "", "path to the configuration file (default "+config.DefaultFileName+" if present)")
	log.RegisterLoggingFlags(Root.PersistentFlags())

	Root.AddCommand(NewResolveCmd())
	Root.AddCommand(NewInspectCmd())
	Root.AddCommand(NewVersionCmd())
}

// Execute runs the root command. It is called once by main.
func Execute() {
	if err := Root.Execute(); err != nil {
		os.Exit(1)
	}
}
