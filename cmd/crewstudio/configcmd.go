package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BaSui01/crewstudio/config"
)

// =============================================================================
// 📤 config export / 📥 config import
// =============================================================================

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Export or import the model selection",
	}
	cmd.AddCommand(newConfigExportCmd(opts), newConfigImportCmd())
	return cmd
}

func newConfigExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out       string
		format    string
		selection string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current selection as YAML or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			sel, err := resolveSelection(cfg.Selection, &runFlags{selectionFile: selection}, false)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return config.ExportSelection(cmd.OutOrStdout(), sel, format)
			}
			if format != "" && strings.EqualFold(format, "json") != (formatOf(out) == "json") {
				return fmt.Errorf("--format %s does not match the extension of %s", format, out)
			}
			if err := config.SaveSelection(out, sel); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Selection exported to "+out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: yaml or json")
	cmd.Flags().StringVarP(&selection, "selection", "s", "", "Selection file to export (default "+DefaultSelectionFile+" when present)")
	return cmd
}

func newConfigImportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a selection file and make it the active selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := config.LoadSelection(args[0])
			if err != nil {
				return err
			}
			if err := config.SaveSelection(out, sel); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Imported "+describeSelection(sel)+" into "+out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", DefaultSelectionFile, "Active selection file")
	return cmd
}

// formatOf 按扩展名推断导出格式
func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}
