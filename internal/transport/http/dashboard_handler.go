package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"sosidash/internal/analytics"
	"sosidash/internal/dataset"
	apierrors "sosidash/internal/errors"
	custommw "sosidash/internal/middleware"
	"sosidash/internal/services"
)

// Multipart form fields accepted by the upload endpoint, one per
// workbook role.
const (
	FieldMaster    = "master"
	FieldAnalysis  = "analysis"
	FieldLinguists = "linguists"
)

// Default top-N cutoffs for the chart-backed listings. limit=0
// requests the full list.
const (
	DefaultLanguagesLimit = 10
	DefaultGapsLimit      = 15
)

// DashboardHandler handles dashboard session HTTP requests with
// RFC 7807 compliance
type DashboardHandler struct {
	service        DashboardServiceInterface
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
	validator      *custommw.ValidationMiddleware
	maxUploadBytes int64
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error handling
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxUploadBytes int64) *DashboardHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &DashboardHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "dashboard_handler")),
		errorHandler:   errorHandler,
		validator:      custommw.NewValidationMiddleware(),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the session routes with proper Chi patterns
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(custommw.ContentTypeValidator("multipart/form-data")).
		Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/overview", h.GetOverview)
		r.Get("/languages", h.GetLanguages)
		r.Get("/trends", h.GetTrends)
		r.Get("/gaps", h.GetGaps)
		r.Get("/search", h.SearchRecords)
		r.Get("/tables/{table}", h.GetTable)
		r.Get("/export", h.ExportCSV)
	})

	return r
}

// SessionCtx middleware validates the session ID parameter
func (h *DashboardHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		if sessionID == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session_id", "Session ID is required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /api/sessions. It accepts a multipart
// form with up to three workbook uploads (master, analysis, linguists)
// and creates a session from whichever were provided.
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "creating session",
		slog.String("request_id", reqID),
		slog.Int64("content_length", r.ContentLength),
	)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.logger.WarnContext(r.Context(), "failed to parse multipart form",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	inputs, err := h.readInputs(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	info, err := h.service.CreateSession(r.Context(), inputs)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create session",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoFilesProvided) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"NO_FILES_PROVIDED",
				"At least one workbook file must be uploaded",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// readInputs collects the uploaded workbook files by role.
func (h *DashboardHandler) readInputs(r *http.Request) (dataset.Inputs, error) {
	var inputs dataset.Inputs

	for _, field := range []struct {
		name string
		dst  **dataset.Input
	}{
		{FieldMaster, &inputs.Master},
		{FieldAnalysis, &inputs.Analysis},
		{FieldLinguists, &inputs.Linguists},
	} {
		file, header, err := r.FormFile(field.name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return inputs, apierrors.ErrValidation(field.name, fmt.Sprintf("Failed to read uploaded %s file", field.name))
		}

		if err := h.validator.ValidateUploadFilename(header.Filename); err != nil {
			file.Close()
			return inputs, err
		}

		data, err := readUpload(file, h.maxUploadBytes)
		file.Close()
		if err != nil {
			return inputs, apierrors.ErrValidation(field.name, err.Error())
		}

		*field.dst = &dataset.Input{Filename: header.Filename, Data: data}
	}

	return inputs, nil
}

// readUpload reads one multipart file fully into memory, bounded.
func readUpload(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("upload exceeds maximum size of %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded file is empty")
	}
	return data, nil
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	info, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.DeleteSession(r.Context(), sessionID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// GetOverview handles GET /api/sessions/{sessionID}/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	stats, err := h.service.Overview(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}

// GetLanguages handles GET /api/sessions/{sessionID}/languages
// with optional ?status= and ?limit= filters.
func (h *DashboardHandler) GetLanguages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	statusFilter := r.URL.Query().Get("status")

	limit, ok := h.queryLimit(w, r, DefaultLanguagesLimit)
	if !ok {
		return
	}

	stats, err := h.service.Languages(r.Context(), sessionID, statusFilter, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   stats,
		"count":  len(stats),
	})
}

// GetTrends handles GET /api/sessions/{sessionID}/trends with optional
// ?from= and ?to= date bounds (2006-01-02).
func (h *DashboardHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	dr, err := h.queryDateRange(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	trends, err := h.service.Trends(r.Context(), sessionID, dr)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   trends,
	})
}

// GetGaps handles GET /api/sessions/{sessionID}/gaps
func (h *DashboardHandler) GetGaps(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit, ok := h.queryLimit(w, r, DefaultGapsLimit)
	if !ok {
		return
	}

	entries, err := h.service.Gaps(r.Context(), sessionID, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// SearchRecords handles GET /api/sessions/{sessionID}/search?q=&table=
func (h *DashboardHandler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	query := r.URL.Query().Get("q")
	table := r.URL.Query().Get("table")

	result, err := h.service.SearchRecords(r.Context(), sessionID, table, query)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
		"count":  result.Len(),
	})
}

// GetTable handles GET /api/sessions/{sessionID}/tables/{table}
func (h *DashboardHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	table := chi.URLParam(r, "table")

	t, err := h.service.Table(r.Context(), sessionID, table)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   t,
		"count":  t.Len(),
	})
}

// ExportCSV handles GET /api/sessions/{sessionID}/export?table= and
// streams the table as a CSV attachment.
func (h *DashboardHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	table := r.URL.Query().Get("table")

	filename, data, err := h.service.ExportCSV(r.Context(), sessionID, table)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// queryLimit parses the optional ?limit= parameter. On a bad value it
// writes the error response and returns false.
func (h *DashboardHandler) queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("limit", "limit must be a non-negative integer"))
		return 0, false
	}
	return limit, true
}

// queryDateRange parses the optional ?from= and ?to= date bounds.
func (h *DashboardHandler) queryDateRange(r *http.Request) (*analytics.DateRange, error) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		return nil, nil
	}

	dr := &analytics.DateRange{}
	if fromRaw != "" {
		from, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return nil, apierrors.ErrValidation("from", "from must be a date in 2006-01-02 format")
		}
		dr.From = from
	}
	if toRaw != "" {
		to, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return nil, apierrors.ErrValidation("to", "to must be a date in 2006-01-02 format")
		}
		dr.To = to
	}
	return dr, nil
}

// handleServiceError maps service sentinel errors onto API errors.
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.WarnContext(r.Context(), "dashboard request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"SESSION_NOT_FOUND",
			"Session not found",
		))
	case errors.Is(err, services.ErrTableNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"TABLE_NOT_FOUND",
			"Table not found in session",
		))
	case errors.Is(err, services.ErrInvalidStatusFilter):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("status",
			fmt.Sprintf("status must be %q or %q", services.FilterSourceable, services.FilterNotSourceable)))
	case errors.Is(err, services.ErrInvalidDateRange):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("to", "to must not be before from"))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
