package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"), log.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func invoiceRow(msgID, number, entity string, date time.Time, total float64) models.Row {
	return models.Row{
		MessageID:  msgID,
		FileOrigin: number + ".pdf",
		FileType:   "pdf",
		Processed:  true,
		Document: models.Document{
			Type:        models.DocInvoice,
			Number:      number,
			Date:        date,
			EntityName:  entity,
			TotalAmount: total,
			Direction:   models.DirectionIncoming,
		},
		ProcessedAt: date,
	}
}

func TestAppendAndLoad(t *testing.T) {
	s := newStore(t)

	rows := []models.Row{
		invoiceRow("<m1>", "001", "CONG TY A", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 100),
		invoiceRow("<m2>", "002", "CONG TY B", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), 200),
	}

	report, err := s.Append(rows)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if report.AddedCount() != 2 || report.DuplicateCount() != 0 {
		t.Errorf("added=%d duplicates=%d", report.AddedCount(), report.DuplicateCount())
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(loaded))
	}
	if loaded[0].Number != "001" || loaded[1].EntityName != "CONG TY B" {
		t.Errorf("unexpected rows: %+v", loaded)
	}
}

func TestAppendSkipsDuplicates(t *testing.T) {
	s := newStore(t)
	row := invoiceRow("<m1>", "001", "CONG TY A", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 100)

	if _, err := s.Append([]models.Row{row}); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	report, err := s.Append([]models.Row{row, invoiceRow("<m3>", "003", "CONG TY C", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), 300)})
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	if report.AddedCount() != 1 || report.DuplicateCount() != 1 {
		t.Errorf("added=%d duplicates=%d", report.AddedCount(), report.DuplicateCount())
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("expected 2 rows after dedupe, got %d", len(loaded))
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	rows, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty store, got %d rows", len(rows))
	}
}

func TestTransactionsFiltering(t *testing.T) {
	s := newStore(t)

	bank := invoiceRow("<m4>", "004", "CONG TY A", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), 50)
	bank.Type = models.DocBankTransaction
	undated := invoiceRow("<m5>", "005", "CONG TY A", time.Time{}, 70)

	rows := []models.Row{
		invoiceRow("<m1>", "002", "CONG TY A", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 100),
		invoiceRow("<m2>", "001", "CONG TY A", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 200),
		invoiceRow("<m3>", "003", "CONG TY B", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), 300),
		bank,
		undated,
	}
	if _, err := s.Append(rows); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.Transactions(Query{
		Start:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Entity: "công ty a",
	})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 invoice rows for entity, got %d", len(got))
	}
	// Oldest first.
	if got[0].Number != "001" || got[1].Number != "002" {
		t.Errorf("unexpected order: %q, %q", got[0].Number, got[1].Number)
	}

	all, err := s.Transactions(Query{})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 dated invoices without filters, got %d", len(all))
	}

	none, err := s.Transactions(Query{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no rows after start date, got %d", len(none))
	}
}

func TestEntities(t *testing.T) {
	s := newStore(t)
	rows := []models.Row{
		invoiceRow("<m1>", "001", "CONG TY B", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 100),
		invoiceRow("<m2>", "002", "CONG TY A", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), 200),
		invoiceRow("<m3>", "003", "Công Ty A", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), 300),
	}
	if _, err := s.Append(rows); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entities, err := s.Entities()
	if err != nil {
		t.Fatalf("Entities failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 distinct entities, got %v", entities)
	}
	if entities[0] != "CONG TY A" && entities[0] != "Công Ty A" {
		t.Errorf("unexpected entity %q", entities[0])
	}
}

func TestProcessedMessages(t *testing.T) {
	s := newStore(t)

	recent, err := s.RecentMessageIDs(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("RecentMessageIDs failed: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("expected empty set from missing file, got %v", recent)
	}

	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := s.MarkProcessed([]string{"<old>"}, old); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := s.MarkProcessed([]string{"<new1>", "<new2>"}, time.Now()); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	recent, err = s.RecentMessageIDs(time.Now().Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("RecentMessageIDs failed: %v", err)
	}
	if len(recent) != 2 || !recent["<new1>"] || !recent["<new2>"] {
		t.Errorf("unexpected recent set %v", recent)
	}
	if recent["<old>"] {
		t.Error("old message should be outside the lookback")
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	s := newStore(t)
	if _, err := s.Append([]models.Row{invoiceRow("<m1>", "001", "CONG TY A", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 100)}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
