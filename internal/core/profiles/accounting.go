package profiles

import "github.com/JonMunkholm/stockrecon/internal/core"

func init() {
	registerAccounting()
}

// registerAccounting mirrors the closing stock layout exported by common
// accounting packages. Location is informational and ignored on import.
func registerAccounting() {
	core.Register(core.TemplateProfile{
		Key:     "accounting",
		Label:   "Closing Stock",
		Headers: []string{"Product Name", "Closing Stock", "Unit", "Category", "Location"},
		SampleRows: [][]any{
			{"Steel Rod 10mm", 500, "pcs", "Raw Materials", "Main Warehouse"},
			{"Copper Wire 2.5mm", 120, "m", "Electrical", "Main Warehouse"},
			{"Packing Tape", 48, "rolls", "Packaging", "Dispatch"},
		},
	})
}
