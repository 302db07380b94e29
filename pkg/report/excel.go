package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"hoadon/pkg/models"
)

const (
	moneyFormat   = "#,##0"
	dateLayout    = "02/01/2006"
	headerProbe   = 20
	headerLeadCol = "STT"
)

var headerCells = []string{
	"STT",
	"Ngày HĐ",
	"Số HĐ",
	"Mã số thuế",
	"Tên đối tác",
	"Tên hàng hóa, dịch vụ",
	"Thành tiền",
	"Thuế suất",
	"Tiền thuế",
	"Tổng tiền",
}

// book holds everything needed to lay one workbook out.
type book struct {
	title    string
	rows     []models.Row
	template string
}

// write renders the workbook at path. With a template the data lands under
// the template's own header row, otherwise a title and header are written
// first.
func (b book) write(path string) error {
	file, sheet, start, err := b.open()
	if err != nil {
		return err
	}
	defer file.Close()

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := file.NewStyle(&excelize.Style{CustomNumFmt: strPtr(moneyFormat)})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	rate, err := file.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	boldMoney, err := file.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: strPtr(moneyFormat),
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, row := range b.rows {
		line := start + i
		file.SetCellValue(sheet, cell("A", line), i+1)
		if !row.Date.IsZero() {
			file.SetCellValue(sheet, cell("B", line), row.Date.Format(dateLayout))
		}
		file.SetCellValue(sheet, cell("C", line), row.Number)
		file.SetCellValue(sheet, cell("D", line), row.CounterpartyTaxNumber)
		file.SetCellValue(sheet, cell("E", line), row.CounterpartyName)
		file.SetCellValue(sheet, cell("F", line), row.Description)
		file.SetCellValue(sheet, cell("G", line), row.AmountBeforeTax)
		file.SetCellValue(sheet, cell("H", line), row.TaxRate)
		file.SetCellValue(sheet, cell("I", line), row.TaxAmount)
		file.SetCellValue(sheet, cell("J", line), row.TotalAmount)
	}

	if len(b.rows) > 0 {
		last := start + len(b.rows) - 1
		total := last + 1
		file.SetCellValue(sheet, cell("F", total), "Tổng cộng")
		for _, col := range []string{"G", "I", "J"} {
			formula := fmt.Sprintf("SUM(%s:%s)", cell(col, start), cell(col, last))
			if err := file.SetCellFormula(sheet, cell(col, total), formula); err != nil {
				return fmt.Errorf("set formula: %w", err)
			}
		}

		file.SetCellStyle(sheet, cell("G", start), cell("G", last), money)
		file.SetCellStyle(sheet, cell("I", start), cell("J", last), money)
		file.SetCellStyle(sheet, cell("H", start), cell("H", last), rate)
		file.SetCellStyle(sheet, cell("F", total), cell("F", total), bold)
		file.SetCellStyle(sheet, cell("G", total), cell("J", total), boldMoney)
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// open prepares the workbook and reports which row the data starts on.
func (b book) open() (*excelize.File, string, int, error) {
	if b.template != "" {
		file, err := excelize.OpenFile(b.template)
		if err != nil {
			return nil, "", 0, fmt.Errorf("open template: %w", err)
		}
		sheet := file.GetSheetName(0)
		header, err := findHeaderRow(file, sheet)
		if err != nil {
			file.Close()
			return nil, "", 0, err
		}
		return file, sheet, header + 1, nil
	}

	file := excelize.NewFile()
	sheet := file.GetSheetName(0)

	title, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		file.Close()
		return nil, "", 0, fmt.Errorf("create style: %w", err)
	}
	header, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		file.Close()
		return nil, "", 0, fmt.Errorf("create style: %w", err)
	}

	file.SetCellValue(sheet, "A1", b.title)
	file.MergeCell(sheet, "A1", "J1")
	file.SetCellStyle(sheet, "A1", "A1", title)
	for i, name := range headerCells {
		col, _ := excelize.ColumnNumberToName(i + 1)
		file.SetCellValue(sheet, cell(col, 2), name)
	}
	file.SetCellStyle(sheet, "A2", "J2", header)

	widths := map[string]float64{
		"A": 6, "B": 12, "C": 14, "D": 16, "E": 40, "F": 40,
		"G": 16, "H": 10, "I": 14, "J": 16,
	}
	for col, width := range widths {
		file.SetColWidth(sheet, col, col, width)
	}
	return file, sheet, 3, nil
}

// findHeaderRow locates the row whose first column reads STT. Templates
// usually carry a letterhead above it, so the scan covers the top of the
// sheet only.
func findHeaderRow(file *excelize.File, sheet string) (int, error) {
	rows, err := file.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read template rows: %w", err)
	}
	for i, row := range rows {
		if i >= headerProbe {
			break
		}
		for _, value := range row {
			if strings.EqualFold(strings.TrimSpace(value), headerLeadCol) {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("template %s row not found in first %d rows", headerLeadCol, headerProbe)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func strPtr(s string) *string {
	return &s
}
