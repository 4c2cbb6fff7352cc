package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// BuildVersion can be set at link time to override the module version.
var BuildVersion = "n/a"

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the licensebundle version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				return fmt.Errorf("no build info available")
			}
			version := info.Main.Version
			if BuildVersion != "n/a" {
				version = BuildVersion
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
}
