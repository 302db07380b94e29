// Package report writes the per entity reporting bundle: a transactions
// CSV in master data layout plus purchase and sales excel books.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

const (
	purchaseBook = "Bao_Cao_Mua_Vao.xlsx"
	salesBook    = "Bao_Cao_Ban_Ra.xlsx"
	csvFile      = "transactions.csv"
)

// Generator renders report bundles under its output directory.
type Generator struct {
	logger   *log.Logger
	output   string
	template string
}

// Result lists what a single run produced.
type Result struct {
	Dir          string
	CSVPath      string
	PurchasePath string
	SalesPath    string
	Incoming     int
	Outgoing     int
	Rows         int
}

// New creates a Generator writing under output. template may be empty, or
// name an xlsx whose header row the books are written into.
func New(output, template string, logger *log.Logger) *Generator {
	return &Generator{
		logger:   logger,
		output:   output,
		template: template,
	}
}

// Generate writes the bundle for one entity over [start, end]. The rows are
// expected to already be filtered to that entity and period. Books with no
// matching documents are skipped.
func (g *Generator) Generate(entity string, start, end time.Time, rows []models.Row) (*Result, error) {
	if entity == "" {
		return nil, fmt.Errorf("report entity is empty")
	}

	dir := filepath.Join(
		g.output,
		models.SafeFileName(entity),
		fmt.Sprintf("%s_to_%s", start.Format("2006-01-02"), end.Format("2006-01-02")),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	result := &Result{Dir: dir, Rows: len(rows)}

	result.CSVPath = filepath.Join(dir, csvFile)
	if err := os.WriteFile(result.CSVPath, CreateCSV(rows, nil), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", csvFile, err)
	}

	incoming := filterRows(rows, Incoming)
	outgoing := filterRows(rows, Outgoing)
	result.Incoming = len(incoming)
	result.Outgoing = len(outgoing)

	period := fmt.Sprintf("từ %s đến %s", start.Format(dateLayout), end.Format(dateLayout))
	if len(incoming) > 0 {
		result.PurchasePath = filepath.Join(dir, purchaseBook)
		b := book{
			title:    fmt.Sprintf("BẢNG KÊ HÓA ĐƠN, CHỨNG TỪ HÀNG HÓA, DỊCH VỤ MUA VÀO - %s (%s)", entity, period),
			rows:     incoming,
			template: g.template,
		}
		if err := b.write(result.PurchasePath); err != nil {
			return nil, fmt.Errorf("write %s: %w", purchaseBook, err)
		}
	}
	if len(outgoing) > 0 {
		result.SalesPath = filepath.Join(dir, salesBook)
		b := book{
			title:    fmt.Sprintf("BẢNG KÊ HÓA ĐƠN, CHỨNG TỪ HÀNG HÓA, DỊCH VỤ BÁN RA - %s (%s)", entity, period),
			rows:     outgoing,
			template: g.template,
		}
		if err := b.write(result.SalesPath); err != nil {
			return nil, fmt.Errorf("write %s: %w", salesBook, err)
		}
	}

	g.logger.Info("report generated",
		"entity", entity,
		"dir", dir,
		"rows", result.Rows,
		"incoming", result.Incoming,
		"outgoing", result.Outgoing)
	return result, nil
}

func filterRows(rows []models.Row, filter FilterFunc[models.Row]) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for i := range rows {
		if filter(rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}
