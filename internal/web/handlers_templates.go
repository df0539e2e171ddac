package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarhq/catalog-import/internal/importer"
)

// handleListTemplates returns the column catalogs for every import type.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, importer.AllTemplates())
}

// handleDownloadTemplate returns a starter CSV for one import type: a header
// row of the expected columns plus one example row.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	importType := importer.ImportType(strings.ToUpper(chi.URLParam(r, "importType")))

	tpl, err := importer.TemplateFor(importType)
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	filename := fmt.Sprintf("%s_template.csv", strings.ToLower(string(importType)))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	header := make([]string, 0, len(tpl.Columns))
	example := make([]string, 0, len(tpl.Columns))
	for _, col := range tpl.Columns {
		header = append(header, col.Name)
		example = append(example, col.Example)
	}

	cw := csv.NewWriter(w)
	cw.Write(header)
	cw.Write(example)
	cw.Flush()
}
