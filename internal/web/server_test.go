package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bazaarhq/catalog-import/internal/config"
	"github.com/bazaarhq/catalog-import/internal/importer"
	_ "github.com/bazaarhq/catalog-import/internal/importer/processors"
	"github.com/bazaarhq/catalog-import/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	jobs := memory.NewJobStore()
	stores := importer.Stores{
		Items:      memory.NewItemStore(),
		Variants:   memory.NewVariantStore(),
		Categories: memory.CategoryResolver{},
	}

	svc, err := importer.NewService(jobs, stores, importer.Options{
		UploadsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	cfg := &config.Config{
		Import: config.ImportConfig{MaxFileSize: 1024 * 1024},
	}
	return NewServer(svc, cfg)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// pollTerminal polls the status endpoint until the job reaches a terminal
// state, exercising the same projection a real caller sees.
func pollTerminal(t *testing.T, srv *Server, vendorID, jobID string) importer.JobView {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/api/imports/"+jobID, nil)
		req.Header.Set(VendorHeader, vendorID)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d: %s", rec.Code, rec.Body.String())
		}
		var view importer.JobView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode poll response: %v", err)
		}
		if view.Status.Terminal() {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", view.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitImport_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"type": "catalog_items"},
		"products.csv",
		"product_name,price\nSaree,1250\nKurta,899\n",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(VendorHeader, "vendor-1")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var view importer.JobView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", view.TotalRows)
	}

	view = pollTerminal(t, srv, "vendor-1", view.ID)
	if view.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want %s (%s)", view.Status, importer.StatusCompleted, view.FailureReason)
	}
	if view.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", view.SuccessCount)
	}
	if view.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %d, want 100", view.ProgressPercent)
	}
}

func TestSubmitImport_SkipsInvalidRows(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{
			"type":   "catalog_items",
			"config": `{"hasHeader":true,"skipInvalidRows":true}`,
		},
		"products.csv",
		"product_name,price\nPot,250\n,100\nLamp,0\n",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(VendorHeader, "vendor-1")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var view importer.JobView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	final := pollTerminal(t, srv, "vendor-1", view.ID)
	if final.Status != importer.StatusCompleted {
		t.Fatalf("status = %s, want %s (%s)", final.Status, importer.StatusCompleted, final.FailureReason)
	}
	if final.SuccessCount != 1 || final.SkippedCount != 2 || final.ErrorCount != 0 {
		t.Errorf("counts = success %d, skipped %d, errors %d, want 1, 2, 0",
			final.SuccessCount, final.SkippedCount, final.ErrorCount)
	}
	if len(final.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(final.Errors))
	}
	if final.Errors[0].RowNumber != 3 || final.Errors[1].RowNumber != 4 {
		t.Errorf("error rows = %d, %d, want 3, 4", final.Errors[0].RowNumber, final.Errors[1].RowNumber)
	}
	for _, re := range final.Errors {
		if re.Kind != importer.ErrorValidation {
			t.Errorf("error kind = %s, want %s", re.Kind, importer.ErrorValidation)
		}
	}
}

func TestSubmitImport_RequiresVendorHeader(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"type": "catalog_items"},
		"products.csv",
		"product_name,price\nSaree,1250\n",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSubmitImport_RejectsInvalidFile(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"type": "catalog_items"},
		"report.pdf",
		"",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(VendorHeader, "vendor-1")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestGetImport_HidesOtherVendors(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"type": "catalog_items"},
		"products.csv",
		"product_name,price\nSaree,1250\n",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(VendorHeader, "vendor-1")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var view importer.JobView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/imports/"+view.ID, nil)
	req.Header.Set(VendorHeader, "vendor-2")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t,
		map[string]string{"rows": "1"},
		"products.csv",
		"product_name,price\nSaree,1250\nKurta,899\n",
	)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(VendorHeader, "vendor-1")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var table struct {
		Headers   []string            `json:"Headers"`
		Rows      []map[string]string `json:"Rows"`
		TotalRows int                 `json:"TotalRows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("rows = %d, want 1 (truncated)", len(table.Rows))
	}
	if table.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", table.TotalRows)
	}
}

func TestListTemplates(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var templates []importer.Template
	if err := json.Unmarshal(rec.Body.Bytes(), &templates); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(templates) != 4 {
		t.Errorf("templates = %d, want 4", len(templates))
	}
}

func TestDownloadTemplate(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/templates/catalog_items", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("product_name")) {
		t.Error("template CSV should contain the product_name column")
	}
}
