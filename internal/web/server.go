// Package web provides the HTTP API for stock imports, sync and exports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/stockrecon/internal/config"
	"github.com/JonMunkholm/stockrecon/internal/core"
	mw "github.com/JonMunkholm/stockrecon/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Server is the HTTP server for the import API.
type Server struct {
	service    *core.Service
	cfg        *config.Config
	router     *chi.Mux
	server     *http.Server
	validate   *validator.Validate
	syncOwners map[string]string
}

// NewServer creates a Server. syncOwners maps sync key digests to owners,
// as returned by config.SecurityConfig.SyncKeyOwners.
func NewServer(service *core.Service, cfg *config.Config, syncOwners map[string]string) *Server {
	s := &Server{
		service:    service,
		cfg:        cfg,
		router:     chi.NewRouter(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		syncOwners: syncOwners,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(newIPRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) setupRoutes() {
	// Uploads, applies and syncs share a stricter per-IP budget.
	heavy := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		heavy = newIPRateLimiter(s.cfg.Rate.ImportLimit).middleware
	}

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{profile}", s.handleDownloadTemplate)

		r.With(heavy, mw.SyncKeyAuth(s.syncOwners, s.denied)).Post("/sync", s.handleSync)

		r.Route("/owners/{ownerID}", func(r chi.Router) {
			r.With(heavy).Post("/imports", s.handleUpload)
			r.Route("/imports/current", func(r chi.Router) {
				r.Get("/", s.handleCurrentImport)
				r.Delete("/", s.handleResetImport)
				r.Post("/rows/{rowID}/toggle", s.handleToggleRow)
				r.Post("/{partition}/{index}/toggle", s.handleToggleRowAt)
				r.Put("/default-category", s.handleSetDefaultCategory)
				r.With(heavy).Post("/apply", s.handleApply)
			})

			r.Get("/export", s.handleExportStock)
			r.Post("/inventory/{productID}", s.handleAdjustStock)
			r.Get("/inventory/{productID}/audit", s.handleProductAudit)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status  string                  `json:"status"`
	Time    time.Time               `json:"time"`
	Applies core.ApplyLimiterStatus `json:"applies"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Time:    time.Now().UTC(),
		Applies: s.service.LimiterStatus(),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
