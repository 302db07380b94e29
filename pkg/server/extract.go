package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"hoadon/pkg/archive"
	"hoadon/pkg/extract"
	"hoadon/pkg/models"
	"hoadon/pkg/report"
	"hoadon/pkg/standardize"
)

// documentJSON mirrors the extracted document schema for API responses.
type documentJSON struct {
	File                  string  `json:"file"`
	Type                  string  `json:"document_type"`
	Number                string  `json:"document_number"`
	Date                  string  `json:"date"`
	EntityName            string  `json:"entity_name"`
	EntityTaxNumber       string  `json:"entity_tax_number"`
	CounterpartyName      string  `json:"counterparty_name"`
	CounterpartyTaxNumber string  `json:"counterparty_tax_number"`
	PaymentMethod         string  `json:"payment_method"`
	AmountBeforeTax       float64 `json:"amount_before_tax"`
	TaxRate               float64 `json:"tax_rate"`
	TaxAmount             float64 `json:"tax_amount"`
	TotalAmount           float64 `json:"total_amount"`
	Direction             string  `json:"direction"`
	Description           string  `json:"description"`
	Error                 string  `json:"error,omitempty"`
}

// handleExtract accepts one uploaded file, unpacks archives, extracts and
// standardizes the documents and caches the rows for CSV download.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "document file required", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to read file", err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "hoadon-upload-*")
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to stage upload", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, models.SafeFileName(header.Filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to stage upload", err)
		return
	}

	files := []string{path}
	if extract.DetectType(header.Filename, data).IsArchive() {
		files, err = archive.New(s.logger).Extract(r.Context(), path, path+"_extracted")
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "failed to unpack archive", err)
			return
		}
	}

	rows := make([]models.Row, 0, len(files))
	for _, f := range files {
		row := models.Row{
			FileOrigin: f,
			FileName:   filepath.Base(f),
			FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(f)), "."),
		}
		doc, err := s.processor.ExtractFile(r.Context(), f)
		if err != nil {
			s.logger.Warn("extraction failed", "file", row.FileName, "error", err)
			row.Skipped = true
			row.Error = err.Error()
			row.Document = models.Document{Direction: models.DirectionUnknown}
		} else {
			row.Processed = true
			row.Document = *doc
		}
		rows = append(rows, row)
	}

	var docs []*models.Document
	for i := range rows {
		if rows[i].Processed {
			docs = append(docs, &rows[i].Document)
		}
	}
	if len(docs) > 0 {
		standardize.Apply(docs, s.processor.Registry())
	}

	name := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)) + "-documents.csv"
	s.documents.Store(name, rows)

	out := make([]documentJSON, len(rows))
	for i, row := range rows {
		out[i] = documentJSON{
			File:                  row.FileName,
			Type:                  string(row.Type),
			Number:                row.Number,
			Date:                  row.DateString(),
			EntityName:            row.EntityName,
			EntityTaxNumber:       row.EntityTaxNumber,
			CounterpartyName:      row.CounterpartyName,
			CounterpartyTaxNumber: row.CounterpartyTaxNumber,
			PaymentMethod:         row.PaymentMethod,
			AmountBeforeTax:       row.AmountBeforeTax,
			TaxRate:               row.TaxRate,
			TaxAmount:             row.TaxAmount,
			TotalAmount:           row.TotalAmount,
			Direction:             string(row.Direction),
			Description:           row.Description,
			Error:                 row.Error,
		}
	}

	s.logger.Info("extraction complete", "file", header.Filename, "documents", len(docs))
	if err := s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"file":      name,
		"documents": out,
	}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

// handleDocuments serves the cached extraction as CSV.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if name == "" {
		s.respondError(w, r, http.StatusBadRequest, "document name required", nil)
		return
	}

	value, ok := s.documents.Load(name)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "extraction not found", nil)
		return
	}
	rows, ok := value.([]models.Row)
	if !ok {
		s.respondError(w, r, http.StatusInternalServerError, "internal type assertion error", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := w.Write(report.CreateCSV(rows, nil)); err != nil {
		s.logger.Warn("failed to write csv response", "err", err)
	}
}
