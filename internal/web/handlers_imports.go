package web

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarhq/catalog-import/internal/importer"
	"github.com/bazaarhq/catalog-import/internal/logging"
	"github.com/bazaarhq/catalog-import/internal/tabular"
)

// handleSubmitImport admits a new import job. The payload is a multipart
// form: "file" holds the upload, "type" the import type, and the optional
// "config" field a JSON-encoded job configuration.
func (s *Server) handleSubmitImport(w http.ResponseWriter, r *http.Request) {
	vendorID := r.Header.Get(VendorHeader)
	if vendorID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing vendor id")
		return
	}

	upload, cfg, importType, ok := s.readSubmission(w, r)
	if !ok {
		return
	}

	job, err := s.service.CreateJob(r.Context(), importer.SubmitRequest{
		VendorID: vendorID,
		File:     upload,
		Type:     importType,
		Config:   cfg,
	})
	if err != nil {
		s.respondSubmitError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import submitted",
		"job_id", job.ID,
		"vendor_id", vendorID,
		"import_type", job.Type,
	)

	writeJSON(w, http.StatusAccepted, job.View())
}

// handlePreview parses an upload without creating a job so the caller can
// inspect headers and sample rows first. The "rows" form value bounds the
// sample size (default 10).
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(VendorHeader) == "" {
		writeError(w, r, http.StatusUnauthorized, "missing vendor id")
		return
	}

	upload, cfg, _, ok := s.readSubmission(w, r)
	if !ok {
		return
	}

	maxRows := 10
	if v := r.FormValue("rows"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxRows = n
		}
	}

	table, err := s.service.PreviewFile(upload, maxRows, cfg.HasHeader)
	if err != nil {
		var fve *importer.FileValidationError
		if errors.As(err, &fve) {
			writeError(w, r, http.StatusUnprocessableEntity, fve.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, table)
}

// handleGetImport returns the polling projection for one job. Vendors can
// only see their own jobs.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadVendorJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

// handleListImports returns the vendor's jobs, most recent first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	vendorID := r.Header.Get(VendorHeader)
	if vendorID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing vendor id")
		return
	}

	jobs, err := s.service.ListVendorJobs(r.Context(), vendorID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list imports")
		return
	}

	views := make([]importer.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.View())
	}
	writeJSON(w, http.StatusOK, views)
}

// handleCancelImport requests cancellation of a running job. The row loop
// observes the cancelled status at its next checkpoint.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadVendorJob(w, r)
	if !ok {
		return
	}

	if err := s.service.Cancel(r.Context(), job.ID); err != nil {
		if errors.Is(err, importer.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "import job not found")
			return
		}
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleExportErrors exports a job's row errors as CSV for offline fixing.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadVendorJob(w, r)
	if !ok {
		return
	}

	// Collect every column seen across the error snapshots so all rows fit
	// one header.
	columnSet := map[string]bool{}
	for _, rowErr := range job.Errors {
		for col := range rowErr.RowData {
			columnSet[col] = true
		}
	}
	columns := make([]string, 0, len(columnSet))
	for col := range columnSet {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	filename := fmt.Sprintf("import_errors_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	cw.Write(append([]string{"_row", "_kind", "_error"}, columns...))

	for _, rowErr := range job.Errors {
		record := []string{
			strconv.Itoa(rowErr.RowNumber),
			string(rowErr.Kind),
			rowErr.Message,
		}
		for _, col := range columns {
			record = append(record, rowErr.RowData[col])
		}
		cw.Write(record)
	}

	cw.Flush()
}

// readSubmission parses the multipart submission shared by submit and
// preview. It reports ok=false after writing the error response.
func (s *Server) readSubmission(w http.ResponseWriter, r *http.Request) (tabular.FileUpload, importer.JobConfig, importer.ImportType, bool) {
	var upload tabular.FileUpload
	var cfg importer.JobConfig

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1024*1024)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return upload, cfg, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return upload, cfg, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return upload, cfg, "", false
	}

	upload = tabular.FileUpload{
		Data:        data,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}

	// Header rows are the norm; the config JSON can turn them off.
	cfg.HasHeader = true
	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid config format")
			return upload, cfg, "", false
		}
	}

	importType := importer.ImportType(strings.ToUpper(strings.TrimSpace(r.FormValue("type"))))
	return upload, cfg, importType, true
}

// respondSubmitError maps CreateJob failures onto HTTP statuses.
func (s *Server) respondSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var fve *importer.FileValidationError
	switch {
	case errors.Is(err, importer.ErrConcurrencyLimit):
		writeError(w, r, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, importer.ErrUnknownImportType):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &fve):
		writeError(w, r, http.StatusUnprocessableEntity, fve.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "failed to create import job")
	}
}

// loadVendorJob resolves the {jobID} parameter to a job owned by the
// requesting vendor. It reports ok=false after writing the error response.
func (s *Server) loadVendorJob(w http.ResponseWriter, r *http.Request) (*importer.ImportJob, bool) {
	vendorID := r.Header.Get(VendorHeader)
	if vendorID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing vendor id")
		return nil, false
	}

	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "missing job id")
		return nil, false
	}

	job, err := s.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, importer.ErrJobNotFound) {
			writeError(w, r, http.StatusNotFound, "import job not found")
			return nil, false
		}
		writeError(w, r, http.StatusInternalServerError, "failed to load import job")
		return nil, false
	}

	// Hide other vendors' jobs entirely.
	if job.VendorID != vendorID {
		writeError(w, r, http.StatusNotFound, "import job not found")
		return nil, false
	}

	return job, true
}
