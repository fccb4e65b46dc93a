package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"it-asset-manager-api/internal/logging"
	"it-asset-manager-api/pkg/importer"
	"it-asset-manager-api/pkg/store"

	jsoniter "github.com/json-iterator/go"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	msgImportFailed = "IMPORT_FAILED"
	msgInternal     = "internal server error"
)

// ImportsHandler handles spreadsheet import and export
type ImportsHandler struct {
	Store       store.Store
	MaxBytes    int64
	MappingPath string // empty uses the mapping embedded in the importer

	// ExposeDetails attaches the cause of a 500 to the response body
	ExposeDetails bool
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(st store.Store) *ImportsHandler {
	return &ImportsHandler{
		Store:    st,
		MaxBytes: 20 << 20, // 20 MB
	}
}

// UploadExcel handles Excel file uploads for asset import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "content-type must be multipart/form-data")
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := importer.DefaultMaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_errors must be a positive integer")
			return
		}
		maxErrors = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeError(w, http.StatusBadRequest, "only .xlsx files are accepted")
		return
	}

	log := logging.FromContext(r.Context()).WithField("file", header.Filename)

	sum, impErr := importer.ImportExcel(r.Context(), h.Store, file, importer.ImportOptions{
		MappingPath: h.MappingPath,
		DryRun:      dryRun,
		MaxErrors:   maxErrors,
	})
	if impErr != nil {
		// only problems with the workbook itself are the uploader's to fix
		if errors.Is(impErr, importer.ErrTooManyErrors) || errors.Is(impErr, importer.ErrInvalidWorkbook) {
			log.WithError(impErr).Warn("import rejected")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   msgImportFailed,
				"details": impErr.Error(),
				"data":    sum,
			})
			return
		}

		log.WithError(impErr).Error("import failed")
		resp := map[string]any{"error": msgInternal, "data": sum}
		if h.ExposeDetails {
			resp["details"] = impErr.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	log.WithFields(map[string]interface{}{
		"inserted": sum.Inserted,
		"updated":  sum.Updated,
		"errors":   sum.Errors,
		"dry_run":  sum.DryRun,
	}).Info("import finished")

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ExportExcel streams the full inventory as an .xlsx attachment
func (h *ImportsHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="assets.xlsx"`)

	if err := importer.ExportExcel(r.Context(), h.Store, w); err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("export failed")
		w.Header().Del("Content-Disposition")
		resp := map[string]string{"error": msgInternal}
		if h.ExposeDetails {
			resp["details"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	jsoniter.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
