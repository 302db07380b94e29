package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// pdfText pulls the embedded text layer out of a PDF. Scanned documents
// come back empty, the caller decides whether that is an error.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("error opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("error extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("error reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// xlsText flattens every cell of a legacy Excel workbook into tab separated
// lines so the same field extraction runs on spreadsheets and PDFs alike.
func xlsText(data []byte) (string, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return "", fmt.Errorf("error creating workbook: %w", err)
	}

	rows := workbook.ReadAllCells(2000)
	if len(rows) == 0 {
		return "", fmt.Errorf("no data found in sheet")
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// xlsxText does the same for the newer zip based workbooks.
func xlsxText(data []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error opening workbook: %w", err)
	}
	defer workbook.Close()

	var b strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("error reading sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("no data found in workbook")
	}
	return b.String(), nil
}
