package report

import (
	"bytes"
	"encoding/csv"

	"hoadon/pkg/models"
)

// FilterFunc selects which rows make it into an output file.
type FilterFunc[T any] func(T) bool

// CreateCSV renders rows in master data column order, so the transactions
// file next to the excel books can be re-imported or diffed against the
// store.
func CreateCSV(rows []models.Row, filter FilterFunc[models.Row]) []byte {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write(models.Header())
	for i := range rows {
		if filter == nil || filter(rows[i]) {
			writer.Write(rows[i].Record())
		}
	}
	writer.Flush()
	return buf.Bytes()
}

// Incoming selects purchase documents, Outgoing the sales ones.
func Incoming(r models.Row) bool { return r.Direction == models.DirectionIncoming }
func Outgoing(r models.Row) bool { return r.Direction == models.DirectionOutgoing }
