package core

// export.go writes templates and stock snapshots as csv or xlsx. Every text
// cell passes through SanitizeCell so a spreadsheet never evaluates exported
// data as a formula.

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ExportFormat is an output container for exports.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// StockHeaders are the columns of a current stock export. They resolve to
// name and quantity when the file is imported again.
var StockHeaders = []string{"Product Name", "Current Stock", "Unit", "Category"}

const formulaGuard = "'"

// ParseExportFormat accepts "csv", "xlsx" or "" (csv).
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportXLSX:
		return ExportXLSX, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "export format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// SanitizeCell prefixes values a spreadsheet would treat as a formula.
func SanitizeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return formulaGuard + v
	}
	return v
}

// SanitizeRow sanitizes every string cell. Numbers pass through unchanged.
func SanitizeRow(cells []any) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		if s, ok := c.(string); ok {
			out[i] = SanitizeCell(s)
			continue
		}
		out[i] = c
	}
	return out
}

// StockRows renders a catalog as export rows. Products without inventory
// export a zero quantity and the default unit.
func StockRows(catalog []CatalogEntry, defaultUnit string) [][]any {
	rows := make([][]any, 0, len(catalog))
	for _, e := range catalog {
		qty, unit := 0, defaultUnit
		if e.Inventory != nil {
			qty = e.Inventory.Quantity
			if e.Inventory.Unit != "" {
				unit = e.Inventory.Unit
			}
		}
		rows = append(rows, []any{e.Name, qty, unit, e.Category})
	}
	return rows
}

// WriteExport writes headers and rows to w in the requested format.
func WriteExport(w io.Writer, format ExportFormat, sheetName string, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}

	all := make([][]any, 0, len(rows)+1)
	all = append(all, SanitizeRow(header))
	for _, r := range rows {
		all = append(all, SanitizeRow(r))
	}

	if format == ExportXLSX {
		return writeXLSX(w, sheetName, all)
	}
	return writeCSV(w, all)
}

func writeCSV(w io.Writer, rows [][]any) error {
	cw := csv.NewWriter(w)
	for _, r := range rows {
		rec := make([]string, len(r))
		for i, c := range r {
			rec[i] = cellString(c)
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func writeXLSX(w io.Writer, sheetName string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Stock"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "name sheet")
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		row := r
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 32); err != nil {
		return errors.Wrap(err, "set column width")
	}

	return errors.Wrap(f.Write(w), "write workbook")
}

func cellString(c any) string {
	switch v := c.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
