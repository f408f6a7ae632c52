package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/logging"
	"github.com/JonMunkholm/csvparse/internal/schema"
	"github.com/JonMunkholm/csvparse/internal/web/templates"
)

// convertResponse is the outcome plus a warning when the conversion
// succeeded but could not be recorded.
type convertResponse struct {
	*core.Outcome
	Warning *ErrorResponse `json:"warning,omitempty"`
}

type healthResponse struct {
	Status     string             `json:"status"`
	Persisting bool               `json:"persisting"`
	Limiter    core.LimiterStatus `json:"limiter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:     "ok",
		Persisting: s.service.Persisting(),
		Limiter:    s.service.Limiter().Status(),
	})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListSchemas())
}

// handleConvert converts an uploaded file and returns the outcome as JSON.
//
// Form fields: file (required), schema (optional registered schema name).
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	out, err := s.convertUpload(w, r)
	warning, ok := persistWarning(r, out, err)
	if !ok {
		respondError(w, r, err)
		return
	}

	resp := convertResponse{Outcome: out}
	if warning != nil {
		resp.Warning = &ErrorResponse{
			Error:   warning.Message,
			Message: warning.Message,
			Action:  warning.Action,
			Code:    warning.Code,
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// persistWarning separates a save failure from a failed conversion. A run
// whose rows were read but not recorded is still returned to the caller,
// with the store error as a warning. ok is false when err should be
// answered with an error response instead.
func persistWarning(r *http.Request, out *core.Outcome, err error) (*core.UserMessage, bool) {
	if err == nil {
		return nil, true
	}
	if out == nil || !errors.Is(err, core.ErrPersist) {
		return nil, false
	}

	msg := core.MapError(err)
	logging.FromContext(r.Context()).Warn("conversion not recorded",
		"path", r.URL.Path,
		"run_id", out.RunID,
		"error", err.Error(),
		"code", msg.Code,
	)
	return &msg, true
}

// handleRecentRuns lists persisted conversions, newest first.
func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{
			Error:   "persistence is disabled",
			Message: "Conversion history is not available",
			Action:  "Set DATABASE_URL to record conversions",
			Code:    "STO002",
		})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid limit",
				Message: "limit must be between 1 and 500",
				Code:    "REQ001",
			})
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", core.ErrPersist, err))
		return
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.UploadPage(schemaOptions(s.service.ListSchemas())).Render(r.Context(), w)
}

// handleConvertPage converts an uploaded file and renders an HTML report.
func (s *Server) handleConvertPage(w http.ResponseWriter, r *http.Request) {
	out, err := s.convertUpload(w, r)
	warning, ok := persistWarning(r, out, err)
	if !ok {
		respondError(w, r, err)
		return
	}

	var columns []string
	if def, ok := schema.Get(out.Schema); ok {
		columns = def.Columns()
	}

	var note string
	if warning != nil {
		note = fmt.Sprintf("This run was not recorded: %s (Code: %s)", warning.Message, warning.Code)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.ReportPage(reportView(out, columns, note)).Render(r.Context(), w)
}

// convertUpload reads the multipart upload and runs the conversion.
func (s *Server) convertUpload(w http.ResponseWriter, r *http.Request) (*core.Outcome, error) {
	maxSize := s.cfg.MaxUploadSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %w", errNoFile, err)
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	return s.service.Convert(r.Context(), core.Request{
		Source: header.Filename,
		Reader: file,
		Schema: r.FormValue("schema"),
	})
}
