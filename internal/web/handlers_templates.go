package web

import (
	"bytes"
	"net/http"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/go-chi/chi/v5"
)

type templateInfo struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Headers []string `json:"headers"`
}

// handleListTemplates returns the registered template profiles.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	profiles := core.Profiles()
	out := make([]templateInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, templateInfo{Key: p.Key, Label: p.Label, Headers: p.Headers})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTemplate serves a blank stock report with sample rows.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := core.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	key := chi.URLParam(r, "profile")
	var buf bytes.Buffer
	if err := core.ExportTemplate(&buf, key, format); err != nil {
		fail(w, r, err)
		return
	}
	writeDownload(w, format, key+"_stock_template."+string(format), buf.Bytes())
}
