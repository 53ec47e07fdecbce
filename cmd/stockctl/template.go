package main

import (
	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var profile, format, output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank stock report template",
		Example: `  stockctl template -o stock.csv
  stockctl template --profile accounting --format xlsx -o stock.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := core.ParseExportFormat(format)
			if err != nil {
				return err
			}
			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if err := core.ExportTemplate(w, profile, f); err != nil {
				_ = w.Close()
				return err
			}
			return errors.Wrap(w.Close(), "close output")
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "standard", "template profile: standard or accounting")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
