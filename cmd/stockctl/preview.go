package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/JonMunkholm/stockrecon/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// previewReport is what preview prints. It mirrors the staged import a web
// upload would produce.
type previewReport struct {
	File      string                 `json:"file" yaml:"file"`
	Owner     string                 `json:"owner,omitempty" yaml:"owner,omitempty"`
	Columns   map[core.Role]string   `json:"columns" yaml:"columns"`
	Matched   []previewRow           `json:"matched" yaml:"matched"`
	Unmatched []previewRow           `json:"unmatched" yaml:"unmatched"`
	Warnings  []core.RowParseWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type previewRow struct {
	Line        int    `json:"line" yaml:"line"`
	ProductName string `json:"product_name" yaml:"product_name"`
	Quantity    int    `json:"quantity" yaml:"quantity"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	ProductID   string `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Current     *int   `json:"current_quantity,omitempty" yaml:"current_quantity,omitempty"`
	Selected    bool   `json:"selected" yaml:"selected"`
	Duplicate   bool   `json:"duplicate,omitempty" yaml:"duplicate,omitempty"`
}

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var owner, output, delimiter string

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show how a stock report would be imported",
		Long: `Decode a stock report, resolve its columns and normalize its rows.
With --owner the rows are also matched against that owner's catalog,
which needs a database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return errors.Newf("unknown output format %q: use json or yaml", output)
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}

			var catalog []core.CatalogEntry
			if owner != "" {
				pool, err := root.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer pool.Close()

				catalog, err = postgres.NewStore(pool).ListProducts(cmd.Context(), owner)
				if err != nil {
					return errors.Wrap(err, "load catalog")
				}
			}

			report, err := buildPreview(data, filepath.Base(path), []rune(delimiter), catalog)
			if err != nil {
				return err
			}
			report.Owner = owner
			return writeReport(cmd.OutOrStdout(), output, report)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "match against this owner's catalog")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "json or yaml")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field separator for .csv and .txt files (default comma)")
	return cmd
}

// buildPreview runs the same decode, resolve, normalize and match steps as
// an upload.
func buildPreview(data []byte, fileName string, delimiter []rune, catalog []core.CatalogEntry) (previewReport, error) {
	var opts core.DecodeOptions
	if len(delimiter) > 0 {
		opts.Delimiter = delimiter[0]
	}

	sheet, err := core.Decode(data, fileName, opts)
	if err != nil {
		return previewReport{}, err
	}
	cols, err := core.ResolveColumns(sheet.Headers)
	if err != nil {
		return previewReport{}, err
	}
	rows, warnings := core.NormalizeRows(sheet, cols)

	sess := core.NewImportSession("", fileName, cols, core.MatchRows(rows, catalog), warnings, core.DefaultCategory)
	view := sess.View(core.StateParsed)

	return previewReport{
		File:      fileName,
		Columns:   view.Columns,
		Matched:   toPreviewRows(view.Matched),
		Unmatched: toPreviewRows(view.Unmatched),
		Warnings:  view.Warnings,
	}, nil
}

func toPreviewRows(staged []core.StagedRow) []previewRow {
	out := make([]previewRow, 0, len(staged))
	for _, r := range staged {
		row := previewRow{
			Line:        r.Row.Line,
			ProductName: r.Row.ProductName,
			Quantity:    r.Row.Quantity,
			Unit:        r.Row.Unit,
			Category:    r.Row.Category,
			ProductID:   r.ProductID,
			Selected:    r.Selected,
			Duplicate:   r.DuplicateTarget,
		}
		if r.Inventory != nil {
			q := r.Inventory.Quantity
			row.Current = &q
		}
		out = append(out, row)
	}
	return out
}

func writeReport(w io.Writer, format string, report previewReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "encode yaml")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(report), "encode json")
}
