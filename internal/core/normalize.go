package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeRows converts raw rows into ParsedStockRows using the resolved
// columns. Rows without a product name are dropped. Rows with a negative
// quantity are dropped with a warning. Quantities that are empty, fractional
// or not numbers become 0 and produce a warning.
func NormalizeRows(sheet *Sheet, cols ColumnRoleMap) ([]ParsedStockRow, []RowParseWarning) {
	nameCol, _ := cols.Column(RoleName)
	qtyCol, _ := cols.Column(RoleQuantity)
	unitCol, hasUnit := cols.Column(RoleUnit)
	catCol, hasCat := cols.Column(RoleCategory)

	rows := make([]ParsedStockRow, 0, len(sheet.Rows))
	var warnings []RowParseWarning

	for _, raw := range sheet.Rows {
		name := strings.TrimSpace(raw.Value(nameCol.Index))
		if name == "" {
			continue
		}

		rawQty := raw.Value(qtyCol.Index)
		qty, problem := parseQuantity(rawQty)
		if problem != "" {
			warnings = append(warnings, RowParseWarning{
				Line:    raw.Line,
				Column:  qtyCol.Label,
				Value:   rawQty,
				Message: problem,
			})
		}
		if qty < 0 {
			continue
		}

		row := ParsedStockRow{
			Line:        raw.Line,
			ProductName: name,
			Quantity:    qty,
		}
		if hasUnit {
			row.Unit = strings.TrimSpace(raw.Value(unitCol.Index))
		}
		if hasCat {
			row.Category = strings.TrimSpace(raw.Value(catCol.Index))
		}
		rows = append(rows, row)
	}

	return rows, warnings
}

// parseQuantity returns the integer quantity for a cell and, when the value
// was not a clean non-negative integer, a short description of the problem.
// A negative result means the row must be dropped.
func parseQuantity(s string) (int, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "empty quantity, using 0"
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return -1, "negative quantity, row dropped"
		}
		if n > MaxQuantity {
			return 0, "quantity out of range, using 0"
		}
		return n, ""
	}

	// Spreadsheet exports often carry thousands separators or a trailing
	// ".00" on whole numbers.
	cleaned := strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, "not a number, using 0"
	}
	if d.IsNegative() {
		return -1, "negative quantity, row dropped"
	}
	if !d.IsInteger() {
		return 0, "fractional quantity, using 0"
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(MaxQuantity)) {
		return 0, "quantity out of range, using 0"
	}
	return int(d.IntPart()), ""
}

// MaxQuantity is the largest stock level the catalog can hold.
const MaxQuantity = 1<<31 - 1
