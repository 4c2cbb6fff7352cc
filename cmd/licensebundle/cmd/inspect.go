package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"licenses.software/bundle/bundle"
)

const (
	FlagInspectOutput = "output"

	outputTable = "table"
	outputJSON  = "json"
)

func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [artifact]",
		Short: "Show the contents of a bundle artifact",
		Long: `Inspect loads a previously written bundle artifact, validates it, and lists
every package with its resolution source. Without an argument the
conventional artifact name is used.`,
		Args:              cobra.MaximumNArgs(1),
		RunE:              runInspect,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	cmd.Flags().StringP(FlagInspectOutput, "o", outputTable, "output format (table, json)")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := bundle.DefaultFileName
	if len(args) == 1 {
		path = args[0]
	}
	b, err := bundle.Load(path)
	if err != nil {
		return err
	}

	switch format, _ := cmd.Flags().GetString(FlagInspectOutput); format {
	case outputJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(b.Resolutions())
	case outputTable:
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Package", "Version", "License", "Source", "Texts"})
		for _, res := range b.Resolutions() {
			t.AppendRow(table.Row{res.Name, res.Version, res.License, res.Source, len(res.Texts)})
		}
		style := table.StyleLight
		style.Options.DrawBorder = false
		t.SetStyle(style)
		t.Render()
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", format)
	}
}
