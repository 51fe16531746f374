package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/workflow"
)

// ReportUploader is the part of the backend client the report relay calls.
type ReportUploader interface {
	UploadReport(ctx context.Context, homologationID int64, filename string, r io.Reader) (*models.HomologationCycle, error)
	ProcessReport(ctx context.Context, homologationID int64) (*models.HomologationCycle, error)
}

// ReportsHandler relays homologation report archives to the backend
type ReportsHandler struct {
	// Uploader returns a client acting with the caller's token.
	Uploader func(r *http.Request) ReportUploader
	MaxBytes int64
	Logger   *zap.Logger
}

// NewReportsHandler creates a new report relay
func NewReportsHandler(uploader func(r *http.Request) ReportUploader, logger *zap.Logger) *ReportsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportsHandler{
		Uploader: uploader,
		MaxBytes: 50 << 20, // 50 MB
		Logger:   logger,
	}
}

// UploadReport handles POST /views/homologations/{id}/report.
// With process=true the backend is also asked to parse the archive right away.
func (h *ReportsHandler) UploadReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		auth.SendError(w, "homologation id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !IsMultipart(r) {
		auth.SendError(w, "content-type must be multipart/form-data", "INVALID_CONTENT_TYPE", http.StatusBadRequest)
		return
	}

	report, done, err := ReadReport(r, h.MaxBytes)
	if err != nil {
		WriteError(w, err)
		return
	}
	defer done()
	if report == nil {
		WriteError(w, &workflow.ValidationError{Message: "Selecione o arquivo do relatório.", Fields: []string{apiclient.ReportField}})
		return
	}

	up := h.Uploader(r)
	cycle, err := up.UploadReport(r.Context(), id, report.Name, report.Content)
	if err != nil {
		h.Logger.Warn("report upload failed", zap.Int64("homologation_id", id), zap.Error(err))
		WriteError(w, err)
		return
	}

	processed := r.FormValue("process") == "true"
	if processed {
		if cycle, err = up.ProcessReport(r.Context(), id); err != nil {
			h.Logger.Warn("report processing failed", zap.Int64("homologation_id", id), zap.Error(err))
			WriteError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": cycle,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"filename":  report.Name,
			"processed": processed,
		},
	})
}

// IsMultipart reports whether r carries a multipart form.
func IsMultipart(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data")
}

// ReadReport parses the multipart form of r and opens its optional report
// archive. A missing file yields a nil report. done must be called once the
// report has been consumed.
func ReadReport(r *http.Request, maxBytes int64) (report *workflow.ReportFile, done func(), err error) {
	done = func() {}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, done, err
		}
		return nil, done, &workflow.ValidationError{Message: "invalid multipart form: " + err.Error()}
	}

	file, header, err := r.FormFile(apiclient.ReportField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, done, nil
	}
	if err != nil {
		return nil, done, &workflow.ValidationError{Message: "invalid report file: " + err.Error(), Fields: []string{apiclient.ReportField}}
	}
	if !isZIP(header) {
		file.Close()
		return nil, done, &workflow.ValidationError{Message: "O relatório deve ser um arquivo .zip.", Fields: []string{apiclient.ReportField}}
	}
	return &workflow.ReportFile{Name: header.Filename, Content: file}, func() { file.Close() }, nil
}

// isZIP checks if the uploaded file is a .zip archive
func isZIP(h *multipart.FileHeader) bool {
	return strings.EqualFold(filepath.Ext(h.Filename), ".zip")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteJSON writes data as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}
