package web

// errors.go renders every failure through core.MapError so clients get a
// user message, an action and a support code, while the technical error is
// logged with the request ID.

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/JonMunkholm/stockrecon/internal/web/templates"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile         = errors.New("no file provided")
	errBadRequest     = errors.New("invalid request body")
	errInvalidSyncKey = errors.New("invalid sync key")
)

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrMalformedInput),
		errors.Is(err, core.ErrUnresolvableColumns):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrRowNotFound),
		errors.Is(err, core.ErrProductNotFound),
		errors.Is(err, core.ErrInventoryNotFound),
		errors.Is(err, core.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrApplyInFlight),
		errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyApplies):
		return http.StatusServiceUnavailable
	}
	if core.MapError(err).Code == "IMP004" {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// fail responds with the status statusFor chooses.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

// respondError logs err and renders the mapped user message as an HTMX
// fragment, JSON or plain text depending on the request.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	log := slog.Warn
	if status >= http.StatusInternalServerError {
		log = slog.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			slog.Error("render error alert", "error", err)
		}
	case wantsJSON(r):
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

// denied is the SyncKeyAuth rejection callback.
func (s *Server) denied(w http.ResponseWriter, r *http.Request, status int) {
	err := errInvalidSyncKey
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="sync"`)
		err = errors.Wrap(errInvalidSyncKey, "missing bearer token")
	}
	respondError(w, r, err, status)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes default to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
