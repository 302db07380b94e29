package models

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// DocumentType classifies an extracted financial document.
type DocumentType string

const (
	DocInvoice         DocumentType = "INVOICE"
	DocBankTransaction DocumentType = "BANK_TRANSACTION"
	DocTaxDocument     DocumentType = "TAX_DOCUMENT"
	DocOtherFinancial  DocumentType = "OTHER_FINANCIAL"
)

// Direction tells whether money moved toward or away from the reporting
// entity of the source email.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
	DirectionInternal Direction = "INTERNAL"
	DirectionUnknown  Direction = "UNKNOWN"
)

// Document is the structured data extracted from a single attachment.
type Document struct {
	Type                  DocumentType
	Number                string
	Date                  time.Time
	EntityName            string
	EntityTaxNumber       string
	CounterpartyName      string
	CounterpartyTaxNumber string
	PaymentMethod         string
	AmountBeforeTax       float64
	TaxRate               float64
	TaxAmount             float64
	TotalAmount           float64
	Direction             Direction
	Description           string
}

// ID creates a short stable identifier from date, document number and entity
// name. Two extractions of the same invoice map to the same ID.
func (d *Document) ID() string {
	input := fmt.Sprintf("%s-%s-%s",
		d.DateString(),
		strings.ToLower(strings.TrimSpace(d.Number)),
		strings.ToLower(strings.TrimSpace(d.EntityName)))
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)[:8]
}

// DateString renders the document date as yyyy-mm-dd, empty when unknown.
func (d *Document) DateString() string {
	if d.Date.IsZero() {
		return ""
	}
	return d.Date.Format("2006-01-02")
}
