package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/JonMunkholm/stockrecon/internal/logging"
	"github.com/JonMunkholm/stockrecon/internal/web/templates"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

func ownerID(r *http.Request) string {
	return chi.URLParam(r, "ownerID")
}

// handleUpload parses a multipart "file" upload into a new import session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(w, r, errors.Newf("file too large: limit is %d bytes", maxSize))
			return
		}
		fail(w, r, errors.Wrap(errNoFile, err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, r, errors.Wrap(err, "read upload"))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	view, err := s.service.StartImport(ctx, ownerID(r), header.Filename, data)
	if err != nil {
		fail(w, r, err)
		return
	}

	logging.ForOwner(ctx, view.OwnerID).Info("import staged",
		"session_id", view.ID,
		"file", header.Filename,
		"size", header.Size,
	)
	s.respondSession(w, r, http.StatusCreated, view)
}

func (s *Server) handleCurrentImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(ownerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, view)
}

func (s *Server) handleToggleRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := uuid.Parse(chi.URLParam(r, "rowID"))
	if err != nil {
		fail(w, r, errors.Wrapf(core.ErrRowNotFound, "row id %q", chi.URLParam(r, "rowID")))
		return
	}

	view, err := s.service.ToggleRow(ownerID(r), rowID)
	if err != nil {
		fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, view)
}

// handleToggleRowAt toggles a row by partition ("matched" or "unmatched")
// and zero-based index within it.
func (s *Server) handleToggleRowAt(w http.ResponseWriter, r *http.Request) {
	partition := core.Partition(chi.URLParam(r, "partition"))
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || (partition != core.PartitionMatched && partition != core.PartitionUnmatched) {
		fail(w, r, errors.Wrapf(core.ErrRowNotFound, "%s/%s", partition, chi.URLParam(r, "index")))
		return
	}

	view, err := s.service.ToggleRowAt(ownerID(r), partition, index)
	if err != nil {
		fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, view)
}

type defaultCategoryRequest struct {
	Category string `json:"category" validate:"required,max=100"`
}

func (s *Server) handleSetDefaultCategory(w http.ResponseWriter, r *http.Request) {
	var req defaultCategoryRequest
	if err := s.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	view, err := s.service.SetDefaultCategory(ownerID(r), req.Category)
	if err != nil {
		fail(w, r, err)
		return
	}
	s.respondSession(w, r, http.StatusOK, view)
}

// handleApply commits the selected rows. The apply keeps running if the
// client disconnects.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	outcome, err := s.service.Apply(ctx, ownerID(r))
	if err != nil {
		fail(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ApplySummary(outcome).Render(r.Context(), w); err != nil {
			logging.FromContext(ctx).Error("render apply summary", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleResetImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(ownerID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int, view core.SessionView) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.SessionSummary(view).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render session summary", "error", err)
		}
		return
	}
	writeJSON(w, status, view)
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	if err := dec.Decode(dst); err != nil {
		return errors.WithHint(errors.Wrapf(errBadRequest, "%v", err), "Send a valid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return errors.WithHint(errors.Wrapf(errBadRequest, "%v", err), validationHint(err))
	}
	return nil
}

// validationHint names the first field that failed validation.
func validationHint(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Check the request fields and try again"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Namespace(), fe.Tag())
	}
}
