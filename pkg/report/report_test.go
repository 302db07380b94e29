package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"hoadon/pkg/models"
)

func reportRow(number string, direction models.Direction, counterparty string, total float64) models.Row {
	return models.Row{
		Document: models.Document{
			Type:                  models.DocInvoice,
			Number:                number,
			Date:                  time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
			EntityName:            "CONG TY TNHH ABC",
			EntityTaxNumber:       "0101234567",
			CounterpartyName:      counterparty,
			CounterpartyTaxNumber: "0309876543",
			AmountBeforeTax:       total / 1.08,
			TaxRate:               0.08,
			TaxAmount:             total - total/1.08,
			TotalAmount:           total,
			Direction:             direction,
			Description:           "Dich vu van chuyen",
		},
		MessageID: "<" + number + "@example.com>",
		FileName:  number + ".pdf",
	}
}

func TestGenerateWritesBundle(t *testing.T) {
	dir := t.TempDir()
	gen := New(dir, "", log.Default())

	rows := []models.Row{
		reportRow("0001", models.DirectionIncoming, "CONG TY CP XYZ", 1080000),
		reportRow("0002", models.DirectionIncoming, "CONG TY CP XYZ", 540000),
		reportRow("0003", models.DirectionOutgoing, "CONG TY TNHH DEF", 2160000),
	}

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	result, err := gen.Generate("Công ty TNHH ABC", start, end, rows)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wantDir := filepath.Join(dir, "Công ty TNHH ABC", "2025-03-01_to_2025-03-31")
	if result.Dir != wantDir {
		t.Errorf("dir = %q, want %q", result.Dir, wantDir)
	}
	if result.Incoming != 2 || result.Outgoing != 1 {
		t.Errorf("counts = %d/%d, want 2/1", result.Incoming, result.Outgoing)
	}

	data, err := os.ReadFile(result.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv records = %d, want header + 3 rows", len(records))
	}
	if records[0][0] != models.Header()[0] {
		t.Errorf("csv header = %q, want %q", records[0][0], models.Header()[0])
	}

	book, err := excelize.OpenFile(result.PurchasePath)
	if err != nil {
		t.Fatalf("open purchase book: %v", err)
	}
	defer book.Close()
	sheet := book.GetSheetName(0)

	if got, _ := book.GetCellValue(sheet, "A2"); got != "STT" {
		t.Errorf("header A2 = %q, want STT", got)
	}
	if got, _ := book.GetCellValue(sheet, "C3"); got != "0001" {
		t.Errorf("C3 = %q, want 0001", got)
	}
	if got, _ := book.GetCellValue(sheet, "E3"); got != "CONG TY CP XYZ" {
		t.Errorf("E3 = %q, want counterparty name", got)
	}
	if got, _ := book.GetCellValue(sheet, "B3"); got != "12/03/2025" {
		t.Errorf("B3 = %q, want 12/03/2025", got)
	}
	if got, _ := book.GetCellFormula(sheet, "J5"); got != "SUM(J3:J4)" {
		t.Errorf("total formula = %q, want SUM(J3:J4)", got)
	}
	if got, _ := book.GetCellValue(sheet, "F5"); got != "Tổng cộng" {
		t.Errorf("F5 = %q, want total label", got)
	}
}

func TestGenerateSkipsEmptyBooks(t *testing.T) {
	dir := t.TempDir()
	gen := New(dir, "", log.Default())

	rows := []models.Row{
		reportRow("0001", models.DirectionIncoming, "CONG TY CP XYZ", 1080000),
	}
	result, err := gen.Generate("ABC", time.Now().AddDate(0, -1, 0), time.Now(), rows)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.SalesPath != "" {
		t.Errorf("sales path = %q, want empty", result.SalesPath)
	}
	if _, err := os.Stat(filepath.Join(result.Dir, salesBook)); !os.IsNotExist(err) {
		t.Errorf("sales book should not exist, stat err = %v", err)
	}
	if result.PurchasePath == "" {
		t.Error("purchase path missing")
	}
}

func TestGenerateWithTemplate(t *testing.T) {
	dir := t.TempDir()

	template := excelize.NewFile()
	sheet := template.GetSheetName(0)
	template.SetCellValue(sheet, "A1", "CÔNG TY TNHH ABC")
	template.SetCellValue(sheet, "A2", "Mẫu số 01-1/GTGT")
	for i, name := range headerCells {
		col, _ := excelize.ColumnNumberToName(i + 1)
		template.SetCellValue(sheet, col+"4", name)
	}
	templatePath := filepath.Join(dir, "template.xlsx")
	if err := template.SaveAs(templatePath); err != nil {
		t.Fatalf("save template: %v", err)
	}
	template.Close()

	gen := New(dir, templatePath, log.Default())
	rows := []models.Row{
		reportRow("0007", models.DirectionOutgoing, "CONG TY TNHH DEF", 330000),
	}
	result, err := gen.Generate("ABC", time.Now().AddDate(0, -1, 0), time.Now(), rows)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	book, err := excelize.OpenFile(result.SalesPath)
	if err != nil {
		t.Fatalf("open sales book: %v", err)
	}
	defer book.Close()
	out := book.GetSheetName(0)
	if got, _ := book.GetCellValue(out, "A1"); got != "CÔNG TY TNHH ABC" {
		t.Errorf("template letterhead lost, A1 = %q", got)
	}
	if got, _ := book.GetCellValue(out, "C5"); got != "0007" {
		t.Errorf("C5 = %q, want data under template header", got)
	}
	if got, _ := book.GetCellFormula(out, "G6"); got != "SUM(G5:G5)" {
		t.Errorf("total formula = %q, want SUM(G5:G5)", got)
	}
}

func TestGenerateRejectsEmptyEntity(t *testing.T) {
	gen := New(t.TempDir(), "", log.Default())
	if _, err := gen.Generate("", time.Now(), time.Now(), nil); err == nil {
		t.Fatal("expected error for empty entity")
	}
}

func TestFindHeaderRowMissing(t *testing.T) {
	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)
	file.SetCellValue(sheet, "A1", "nothing here")
	if _, err := findHeaderRow(file, sheet); err == nil {
		t.Fatal("expected error when header row absent")
	}
}
