package core

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// MatchKey is the comparison key for product names: trimmed and case-folded.
func MatchKey(name string) string {
	// Casers carry state and are not shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(name))
}

// MatchRows partitions rows against a catalog snapshot. A row matches when
// its key equals the key of a catalog entry; when several entries share a
// key the first one in catalog order wins. Input order is preserved within
// each partition.
func MatchRows(rows []ParsedStockRow, catalog []CatalogEntry) MatchSet {
	index := make(map[string]int, len(catalog))
	for i, entry := range catalog {
		key := MatchKey(entry.Name)
		if prev, ok := index[key]; ok {
			slog.Debug("ambiguous catalog name",
				"name", entry.Name,
				"kept_product_id", catalog[prev].ID,
				"ignored_product_id", entry.ID,
			)
			continue
		}
		index[key] = i
	}

	var set MatchSet
	for _, row := range rows {
		if i, ok := index[MatchKey(row.ProductName)]; ok {
			entry := catalog[i]
			set.Matched = append(set.Matched, MatchResult{Row: row, Entry: &entry})
			continue
		}
		set.Unmatched = append(set.Unmatched, MatchResult{Row: row})
	}
	return set
}
