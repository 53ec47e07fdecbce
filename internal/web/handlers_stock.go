package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/JonMunkholm/stockrecon/internal/logging"
	"github.com/JonMunkholm/stockrecon/internal/web/middleware"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

// maxAuditLimit caps ?limit= on the audit endpoint.
const maxAuditLimit = 1000

// handleExportStock downloads the owner's current stock as csv or xlsx.
func (s *Server) handleExportStock(w http.ResponseWriter, r *http.Request) {
	format, err := core.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	// Buffer so a failed export still gets a proper error response.
	var buf bytes.Buffer
	if err := s.service.ExportStock(r.Context(), ownerID(r), format, &buf); err != nil {
		fail(w, r, err)
		return
	}

	filename := fmt.Sprintf("stock_%s.%s", time.Now().Format("2006-01-02"), format)
	writeDownload(w, format, filename, buf.Bytes())
}

type adjustRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,max=2147483647"`
}

// handleAdjustStock sets one product's stock level by hand.
func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := s.decode(r, &req); err != nil {
		if req.Quantity != nil && (*req.Quantity < 0 || *req.Quantity > core.MaxQuantity) {
			err = errors.Mark(err, core.ErrInvalidQuantity)
		}
		fail(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	entry, err := s.service.AdjustStock(ctx, ownerID(r), chi.URLParam(r, "productID"), *req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleProductAudit lists the newest audit entries for one product.
func (s *Server) handleProductAudit(w http.ResponseWriter, r *http.Request) {
	limit := core.DefaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(w, r, errors.WithHint(errors.Wrapf(errBadRequest, "limit %q", raw), "limit must be a positive number"))
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := s.service.ProductAudit(r.Context(), ownerID(r), chi.URLParam(r, "productID"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type syncRequest struct {
	Source string          `json:"source" validate:"required,max=100"`
	Items  []core.SyncItem `json:"items" validate:"required,max=10000,dive"`
}

// handleSync applies stock levels pushed by an external system for the
// owner bound to the bearer key.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.SyncOwnerFromContext(r.Context())
	if !ok {
		respondError(w, r, errInvalidSyncKey, http.StatusForbidden)
		return
	}

	var req syncRequest
	if err := s.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	ctx := withSyncActor(WithRequestMetadata(r.Context(), r), req.Source)
	outcome, err := s.service.Sync(ctx, owner, req.Source, req.Items)
	if err != nil {
		fail(w, r, err)
		return
	}

	logging.ForOwner(ctx, owner).Info("sync request completed",
		"source", req.Source,
		"items", len(req.Items),
		"warnings", len(outcome.Warnings),
	)
	writeJSON(w, http.StatusOK, outcome)
}

func writeDownload(w http.ResponseWriter, format core.ExportFormat, filename string, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
