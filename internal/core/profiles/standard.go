package profiles

import "github.com/JonMunkholm/stockrecon/internal/core"

func init() {
	registerStandard()
}

func registerStandard() {
	core.Register(core.TemplateProfile{
		Key:     "standard",
		Label:   "Stock Report",
		Headers: []string{"Product Name", "Quantity", "Unit", "Category"},
		SampleRows: [][]any{
			{"Steel Rod 10mm", 500, "pcs", "Raw Materials"},
			{"Copper Wire 2.5mm", 120, "m", "Electrical"},
			{"Packing Tape", 48, "rolls", "Packaging"},
		},
	})
}
