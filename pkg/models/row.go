package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one line of the master data file: envelope metadata of the source
// email, processing flags and the extracted document flattened together.
type Row struct {
	MessageID       string
	EmailDate       string
	InternalDate    time.Time
	Subject         string
	From            string
	Summary         string
	AttachmentCount int
	FileOrigin      string
	FileName        string
	FileType        string
	Processed       bool
	Skipped         bool
	Error           string
	Document
	ProcessedAt time.Time
}

// Header is the column order of the master data file. Record and ParseRow
// must agree with it.
func Header() []string {
	return []string{
		"message_id", "email_date", "internal_date", "subject", "from_email",
		"summary", "attachment_count", "file_origin", "file_name", "file_type",
		"processed", "skipped", "error",
		"document_id", "document_type", "document_number", "document_date",
		"entity_name", "entity_tax_number",
		"counterparty_name", "counterparty_tax_number",
		"payment_method", "amount_before_tax", "tax_rate", "tax_amount",
		"total_amount", "direction", "description", "processed_at",
	}
}

// Record flattens the row into master data column order. The document number
// is prefixed with an apostrophe so spreadsheet tools keep it textual.
func (r *Row) Record() []string {
	number := strings.TrimSpace(r.Number)
	if number != "" && !strings.HasPrefix(number, "'") {
		number = "'" + number
	}
	return []string{
		r.MessageID,
		r.EmailDate,
		formatTime(r.InternalDate),
		r.Subject,
		r.From,
		r.Summary,
		strconv.Itoa(r.AttachmentCount),
		r.FileOrigin,
		r.FileName,
		r.FileType,
		strconv.FormatBool(r.Processed),
		strconv.FormatBool(r.Skipped),
		r.Error,
		r.ID(),
		string(r.Type),
		number,
		r.DateString(),
		r.EntityName,
		r.EntityTaxNumber,
		r.CounterpartyName,
		r.CounterpartyTaxNumber,
		r.PaymentMethod,
		formatAmount(r.AmountBeforeTax),
		formatAmount(r.TaxRate),
		formatAmount(r.TaxAmount),
		formatAmount(r.TotalAmount),
		string(r.Direction),
		r.Description,
		formatTime(r.ProcessedAt),
	}
}

// ParseRow rebuilds a row from a master data record. Malformed numeric cells
// fail the whole record so corruption does not pass silently.
func ParseRow(record []string) (Row, error) {
	if len(record) != len(Header()) {
		return Row{}, fmt.Errorf("expected %d columns, got %d", len(Header()), len(record))
	}

	var row Row
	var err error

	row.MessageID = record[0]
	row.EmailDate = record[1]
	if row.InternalDate, err = parseTime(record[2]); err != nil {
		return Row{}, fmt.Errorf("internal_date: %w", err)
	}
	row.Subject = record[3]
	row.From = record[4]
	row.Summary = record[5]
	if record[6] != "" {
		if row.AttachmentCount, err = strconv.Atoi(record[6]); err != nil {
			return Row{}, fmt.Errorf("attachment_count: %w", err)
		}
	}
	row.FileOrigin = record[7]
	row.FileName = record[8]
	row.FileType = record[9]
	row.Processed = record[10] == "true"
	row.Skipped = record[11] == "true"
	row.Error = record[12]
	// record[13] is the derived document ID, recomputed on demand.
	row.Type = DocumentType(record[14])
	row.Number = strings.TrimPrefix(record[15], "'")
	if record[16] != "" {
		if row.Date, err = time.Parse("2006-01-02", record[16]); err != nil {
			return Row{}, fmt.Errorf("document_date: %w", err)
		}
	}
	row.EntityName = record[17]
	row.EntityTaxNumber = record[18]
	row.CounterpartyName = record[19]
	row.CounterpartyTaxNumber = record[20]
	row.PaymentMethod = record[21]
	if row.AmountBeforeTax, err = parseAmount(record[22]); err != nil {
		return Row{}, fmt.Errorf("amount_before_tax: %w", err)
	}
	if row.TaxRate, err = parseAmount(record[23]); err != nil {
		return Row{}, fmt.Errorf("tax_rate: %w", err)
	}
	if row.TaxAmount, err = parseAmount(record[24]); err != nil {
		return Row{}, fmt.Errorf("tax_amount: %w", err)
	}
	if row.TotalAmount, err = parseAmount(record[25]); err != nil {
		return Row{}, fmt.Errorf("total_amount: %w", err)
	}
	row.Direction = Direction(record[26])
	if row.Direction == "" {
		row.Direction = DirectionUnknown
	}
	row.Description = record[27]
	if row.ProcessedAt, err = parseTime(record[28]); err != nil {
		return Row{}, fmt.Errorf("processed_at: %w", err)
	}

	return row, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatAmount(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
