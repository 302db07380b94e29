package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"hoadon/pkg/config"
	"hoadon/pkg/models"
)

const uploadInvoice = `HÓA ĐƠN GIÁ TRỊ GIA TĂNG
Số: 0000404
Ngày 12 tháng 03 năm 2025
Đơn vị bán hàng: CÔNG TY TNHH THÀNH CÔNG
Mã số thuế: 0107654321
Đơn vị mua hàng: CÔNG TY CỔ PHẦN HOA SEN
Mã số thuế: 0312345678
Hình thức thanh toán: Chuyển khoản
Cộng tiền hàng: 3.000.000
Thuế suất GTGT: 10%
Tiền thuế GTGT: 300.000
Tổng cộng tiền thanh toán: 3.300.000
`

const zippedInvoice = `HÓA ĐƠN GIÁ TRỊ GIA TĂNG
Số: 0000505
Ngày 15 tháng 03 năm 2025
Đơn vị bán hàng: CÔNG TY TNHH THÀNH CÔNG
Mã số thuế: 0107654321
Đơn vị mua hàng: CÔNG TY CỔ PHẦN HOA SEN
Mã số thuế: 0312345678
Tổng cộng tiền thanh toán: 1.100.000
`

type extractResponse struct {
	Status    string `json:"status"`
	File      string `json:"file"`
	Documents []struct {
		File      string  `json:"file"`
		Number    string  `json:"document_number"`
		Entity    string  `json:"entity_name"`
		Direction string  `json:"direction"`
		Total     float64 `json:"total_amount"`
	} `json:"documents"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	cfg := &config.Config{
		DataDir:  t.TempDir(),
		Output:   filepath.Join(t.TempDir(), "reports"),
		Archive:  filepath.Join(t.TempDir(), "organized"),
		Registry: filepath.Join(t.TempDir(), "missing.yaml"),
	}
	s, err := New(cfg, log.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.setupRoutes()
	return s
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestIndexUnknownPath(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExtractRequiresPost(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/extract", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestExtractAndDownload(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, uploadRequest(t, "hd404.txt", []byte(uploadInvoice)))
	if rec.Code != http.StatusOK {
		t.Fatalf("extract: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.File != "hd404-documents.csv" {
		t.Errorf("file = %q", resp.File)
	}
	if len(resp.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(resp.Documents))
	}
	doc := resp.Documents[0]
	if doc.Number != "0000404" {
		t.Errorf("document_number = %q", doc.Number)
	}
	if doc.Entity != "CÔNG TY TNHH THÀNH CÔNG" {
		t.Errorf("entity_name = %q", doc.Entity)
	}
	if doc.Direction != string(models.DirectionOutgoing) {
		t.Errorf("direction = %q", doc.Direction)
	}
	if doc.Total != 3300000 {
		t.Errorf("total_amount = %v", doc.Total)
	}

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+resp.File, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "0000404") {
		t.Errorf("csv body missing document number: %q", rec.Body.String())
	}
}

func TestExtractUnpacksArchives(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"hd404.txt": uploadInvoice,
		"hd505.txt": zippedInvoice,
	} {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, uploadRequest(t, "batch.zip", buf.Bytes()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp extractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(resp.Documents))
	}
	numbers := map[string]bool{}
	for _, doc := range resp.Documents {
		numbers[doc.Number] = true
	}
	if !numbers["0000404"] || !numbers["0000505"] {
		t.Errorf("unexpected document numbers %v", numbers)
	}
}

func TestDocumentsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/nope.csv", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func reportSeedRow(number string, date time.Time, direction models.Direction, total float64) models.Row {
	return models.Row{
		MessageID:  "msg-" + number,
		FileOrigin: "/mail/" + number + ".pdf",
		FileName:   number + ".pdf",
		Processed:  true,
		Document: models.Document{
			Type:                  models.DocInvoice,
			Number:                number,
			Date:                  date,
			EntityName:            "CÔNG TY TNHH THÀNH CÔNG",
			EntityTaxNumber:       "0107654321",
			CounterpartyName:      "CÔNG TY CỔ PHẦN HOA SEN",
			CounterpartyTaxNumber: "0312345678",
			AmountBeforeTax:       total,
			TotalAmount:           total,
			Direction:             direction,
		},
		ProcessedAt: date,
	}
}

func postForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestReportEndpoint(t *testing.T) {
	s := newTestServer(t)

	rows := []models.Row{
		reportSeedRow("0000601", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), models.DirectionOutgoing, 1000000),
		reportSeedRow("0000602", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), models.DirectionIncoming, 500000),
	}
	if _, err := s.processor.Store().Append(rows); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := postForm(s, "/api/report", url.Values{
		"entity":     {"CÔNG TY TNHH THÀNH CÔNG"},
		"start_date": {"2025-03-01"},
		"end_date":   {"2025-03-31"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".zip") {
		t.Errorf("content disposition = %q", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open response zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"transactions.csv", "Bao_Cao_Mua_Vao.xlsx", "Bao_Cao_Ban_Ra.xlsx"} {
		if !names[want] {
			t.Errorf("zip missing %s, has %v", want, names)
		}
	}
}

func TestReportEndpointNoData(t *testing.T) {
	s := newTestServer(t)

	rec := postForm(s, "/api/report", url.Values{
		"entity":     {"CÔNG TY TNHH KHÔNG TỒN TẠI"},
		"start_date": {"2025-03-01"},
		"end_date":   {"2025-03-31"},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReportEndpointRejectsBadDates(t *testing.T) {
	s := newTestServer(t)

	rec := postForm(s, "/api/report", url.Values{
		"entity":     {"CÔNG TY TNHH THÀNH CÔNG"},
		"start_date": {"03/01/2025"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postForm(s, "/api/report", url.Values{
		"entity":     {"CÔNG TY TNHH THÀNH CÔNG"},
		"start_date": {"2025-03-31"},
		"end_date":   {"2025-03-01"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReportEndpointRequiresEntity(t *testing.T) {
	s := newTestServer(t)

	rec := postForm(s, "/api/report", url.Values{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
