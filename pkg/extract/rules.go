package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

// Rules is the regex based extractor. It works on diacritic folded upper
// case text, so the patterns below are plain ASCII even though the source
// documents are Vietnamese.
type Rules struct {
	logger *log.Logger
}

func NewRules(logger *log.Logger) *Rules {
	return &Rules{logger: logger}
}

var (
	reNumber = regexp.MustCompile(`(?:SO HOA DON|SO HD|INVOICE NO\.?|INVOICE NUMBER)\s*[:#.]?\s*([A-Z0-9][A-Z0-9/\-]{0,19})`)
	reBareNo = regexp.MustCompile(`\bSO\s*[:#]\s*([0-9]{1,8})\b`)
	reVNDate = regexp.MustCompile(`NGAY\s*(\d{1,2})\s*THANG\s*(\d{1,2})\s*NAM\s*(\d{4})`)
	reDate   = regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{4}|\d{4}-\d{2}-\d{2})\b`)
	reTaxNo  = regexp.MustCompile(`(?:MA SO THUE|MST|TAX CODE)\s*[:#.]?\s*([0-9]{10}(?:-[0-9]{3})?)`)

	reSellerName = regexp.MustCompile(`(?:DON VI BAN HANG|NGUOI BAN HANG|NGUOI BAN|SELLER)\s*[:]?\s*(.+)`)
	reBuyerName  = regexp.MustCompile(`(?:DON VI MUA HANG|NGUOI MUA HANG|NGUOI MUA|KHACH HANG|BUYER)\s*[:]?\s*(.+)`)
	reUnitName   = regexp.MustCompile(`TEN DON VI\s*[:]?\s*(.+)`)
	reCompany    = regexp.MustCompile(`^(?:CONG TY|CTY|DOANH NGHIEP|HO KINH DOANH)\b.*`)

	reAmountBefore = regexp.MustCompile(`(?:CONG TIEN HANG|TIEN HANG TRUOC THUE|THANH TIEN TRUOC THUE|SUBTOTAL|AMOUNT BEFORE TAX)\s*(?:\([^)]*\))?\s*[:]?\s*([0-9][0-9., ]*)`)
	reTaxAmount    = regexp.MustCompile(`(?:TIEN THUE GTGT|TIEN THUE|VAT AMOUNT|TAX AMOUNT)\s*(?:\([^)]*\))?\s*[:]?\s*([0-9][0-9., ]*)`)
	reTotal        = regexp.MustCompile(`(?:TONG CONG TIEN THANH TOAN|TONG TIEN THANH TOAN|TONG CONG|TONG THANH TOAN|SO TIEN|TOTAL PAYMENT|TOTAL AMOUNT|TOTAL)\s*(?:\([^)]*\))?\s*[:]?\s*([0-9][0-9., ]*)`)
	reTaxRate      = regexp.MustCompile(`(?:THUE SUAT GTGT|THUE SUAT|VAT RATE|TAX RATE)\s*(?:\([^)]*\))?\s*[:]?\s*([0-9.,]{1,6}\s*%?|KCT)`)
	rePayment      = regexp.MustCompile(`(?:HINH THUC THANH TOAN|PAYMENT METHOD)\s*(?:\([^)]*\))?\s*[:]?\s*(.+)`)
	reDescription  = regexp.MustCompile(`(?:TEN HANG HOA, DICH VU|NOI DUNG|DIEN GIAI|DESCRIPTION)\s*[:]\s*(.+)`)
)

// Extract walks the folded text line by line and fills whatever fields the
// label patterns can find. It fails only when nothing at all was
// recognized.
func (r *Rules) Extract(text string) (*models.Document, error) {
	lines := foldLines(text)
	foldedLines := make([]string, len(lines))
	for i, l := range lines {
		foldedLines[i] = l.folded
	}
	folded := strings.Join(foldedLines, "\n")

	doc := &models.Document{
		Type:          classify(folded),
		PaymentMethod: "others",
		Direction:     models.DirectionUnknown,
	}

	var taxNumbers []string
	var companyLines []string

	for _, l := range lines {
		line := l.folded
		if doc.Number == "" {
			if m := reNumber.FindStringSubmatch(line); m != nil {
				doc.Number = m[1]
			} else if m := reBareNo.FindStringSubmatch(line); m != nil {
				doc.Number = m[1]
			}
		}

		if doc.Date.IsZero() {
			if m := reVNDate.FindStringSubmatch(line); m != nil {
				if t, err := parseDate(fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
					doc.Date = t
				}
			}
		}

		for _, m := range reTaxNo.FindAllStringSubmatch(line, -1) {
			taxNumbers = append(taxNumbers, m[1])
		}

		if m := reSellerName.FindStringSubmatch(line); m != nil && doc.EntityName == "" {
			doc.EntityName = displayName(l.original, m[1])
		}
		if m := reBuyerName.FindStringSubmatch(line); m != nil && doc.CounterpartyName == "" {
			doc.CounterpartyName = displayName(l.original, m[1])
		}
		if m := reUnitName.FindStringSubmatch(line); m != nil {
			companyLines = append(companyLines, displayName(l.original, m[1]))
		} else if reCompany.MatchString(line) {
			companyLines = append(companyLines, cleanName(l.original))
		}

		if doc.AmountBeforeTax == 0 {
			if m := reAmountBefore.FindStringSubmatch(line); m != nil {
				doc.AmountBeforeTax, _ = parseAmount(m[1])
			}
		}
		if doc.TaxAmount == 0 {
			if m := reTaxAmount.FindStringSubmatch(line); m != nil {
				doc.TaxAmount, _ = parseAmount(m[1])
			}
		}
		if doc.TotalAmount == 0 {
			if m := reTotal.FindStringSubmatch(line); m != nil {
				doc.TotalAmount, _ = parseAmount(m[1])
			}
		}
		if doc.TaxRate == 0 {
			if m := reTaxRate.FindStringSubmatch(line); m != nil {
				doc.TaxRate, _ = parseTaxRate(m[1])
			}
		}

		if m := rePayment.FindStringSubmatch(line); m != nil {
			doc.PaymentMethod = paymentMethod(m[1])
		}
		if doc.Description == "" {
			if m := reDescription.FindStringSubmatch(line); m != nil {
				doc.Description = afterLabel(l.original, m[1])
			}
		}
	}

	// The date on an invoice without the long Vietnamese spelling is the
	// first plain date in the document.
	if doc.Date.IsZero() {
		if m := reDate.FindStringSubmatch(folded); m != nil {
			if t, err := parseDate(m[1]); err == nil {
				doc.Date = t
			}
		}
	}

	// Sellers are printed before buyers, tax codes appear in the same order.
	if len(taxNumbers) > 0 && doc.EntityTaxNumber == "" {
		doc.EntityTaxNumber = taxNumbers[0]
	}
	if len(taxNumbers) > 1 && doc.CounterpartyTaxNumber == "" {
		doc.CounterpartyTaxNumber = taxNumbers[1]
	}
	if doc.EntityName == "" && len(companyLines) > 0 {
		doc.EntityName = companyLines[0]
	}
	if doc.CounterpartyName == "" && len(companyLines) > 1 {
		doc.CounterpartyName = companyLines[1]
	}

	fillAmountGaps(doc)

	if empty(doc) {
		return nil, fmt.Errorf("no recognizable fields")
	}

	r.logger.Debug("rules extracted document",
		"type", doc.Type, "number", doc.Number, "total", doc.TotalAmount)
	return doc, nil
}

// fillAmountGaps derives whichever of subtotal, tax and total is missing
// from the other two.
func fillAmountGaps(doc *models.Document) {
	switch {
	case doc.TotalAmount == 0 && doc.AmountBeforeTax > 0:
		doc.TotalAmount = doc.AmountBeforeTax + doc.TaxAmount
	case doc.AmountBeforeTax == 0 && doc.TotalAmount > 0:
		doc.AmountBeforeTax = doc.TotalAmount - doc.TaxAmount
	}
	if doc.TaxAmount == 0 && doc.TaxRate > 0 && doc.AmountBeforeTax > 0 {
		doc.TaxAmount = doc.AmountBeforeTax * doc.TaxRate
	}
}

func empty(doc *models.Document) bool {
	return doc.Number == "" && doc.Date.IsZero() && doc.EntityName == "" &&
		doc.TotalAmount == 0 && doc.AmountBeforeTax == 0
}

func classify(folded string) models.DocumentType {
	switch {
	case strings.Contains(folded, "HOA DON") || strings.Contains(folded, "INVOICE"):
		return models.DocInvoice
	case strings.Contains(folded, "GIAY BAO CO") || strings.Contains(folded, "GIAY BAO NO") ||
		strings.Contains(folded, "UY NHIEM CHI") || strings.Contains(folded, "LENH CHUYEN TIEN") ||
		strings.Contains(folded, "SAO KE") || strings.Contains(folded, "PAYMENT ORDER") ||
		strings.Contains(folded, "BANK STATEMENT"):
		return models.DocBankTransaction
	case strings.Contains(folded, "TO KHAI THUE") || strings.Contains(folded, "BIEN LAI THUE") ||
		strings.Contains(folded, "TAX DECLARATION") || strings.Contains(folded, "TAX RECEIPT"):
		return models.DocTaxDocument
	default:
		return models.DocOtherFinancial
	}
}

func paymentMethod(value string) string {
	value = strings.ToUpper(value)
	switch {
	case strings.Contains(value, "CHUYEN KHOAN") || strings.Contains(value, "CK") ||
		strings.Contains(value, "BANK TRANSFER") || strings.Contains(value, "TRANSFER"):
		return "bank_transfer"
	case strings.Contains(value, "TIEN MAT") || strings.Contains(value, "CASH"):
		return "cash"
	default:
		return "others"
	}
}

// cleanName strips label punctuation and a trailing parenthesized
// translation from a captured company name.
func cleanName(s string) string {
	s = strings.TrimSpace(strings.TrimLeft(s, ":.- "))
	if i := strings.IndexByte(s, '('); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	return strings.Join(strings.Fields(s), " ")
}

// afterLabel recovers the original spelling of a captured value. Matching
// runs on folded text, stored values keep the document's diacritics.
func afterLabel(original, folded string) string {
	if i := strings.IndexByte(original, ':'); i >= 0 {
		if v := strings.TrimSpace(original[i+1:]); v != "" {
			return v
		}
	}
	return strings.TrimSpace(folded)
}

func displayName(original, folded string) string {
	return cleanName(afterLabel(original, folded))
}

// textLine pairs the folded form the patterns match against with the
// original spelling names are stored in.
type textLine struct {
	folded   string
	original string
}

// foldLines normalizes each line separately so label patterns keep their
// line context.
func foldLines(text string) []textLine {
	raw := strings.Split(text, "\n")
	out := make([]textLine, 0, len(raw))
	for _, s := range raw {
		s = strings.ReplaceAll(s, "\t", " ")
		out = append(out, textLine{
			folded:   models.NormalizeName(s),
			original: strings.Join(strings.Fields(s), " "),
		})
	}
	return out
}
