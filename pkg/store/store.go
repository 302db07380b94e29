// Package store keeps everything the pipeline has ever extracted in two CSV
// files under one data directory: master_data.csv with the flattened
// documents and processed_messages.csv with the emails already handled.
package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

const (
	masterFile    = "master_data.csv"
	processedFile = "processed_messages.csv"
)

type Store struct {
	dir    string
	logger *log.Logger
}

func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) masterPath() string    { return filepath.Join(s.dir, masterFile) }
func (s *Store) processedPath() string { return filepath.Join(s.dir, processedFile) }

// Load reads the whole master data file. A missing file is an empty store.
// Malformed rows are logged and skipped so one bad line cannot take the
// pipeline down.
func (s *Store) Load() ([]models.Row, error) {
	file, err := os.Open(s.masterPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open master data: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows []models.Row
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read master data: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && record[0] == "message_id" {
				continue
			}
		}

		row, err := models.ParseRow(record)
		if err != nil {
			s.logger.Warn("skipping malformed master data row", "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Status of one row in an append report.
type Status int

const (
	Stored Status = iota
	Duplicate
)

// Entry links an incoming row with its append status.
type Entry struct {
	Row    models.Row
	Status Status
}

// AppendReport says which incoming rows were new and which the store had
// already seen.
type AppendReport struct {
	Items []Entry
	added int
}

func (r *AppendReport) AddedCount() int     { return r.added }
func (r *AppendReport) DuplicateCount() int { return len(r.Items) - r.added }

// Append stores new rows, skipping ones already present. A row is the same
// row when message, source attachment and document identity all match. The
// file is replaced atomically so a crash cannot leave it half written.
func (s *Store) Append(rows []models.Row) (*AppendReport, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[rowKey(&existing[i])] = true
	}

	report := &AppendReport{}
	fresh := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		key := rowKey(&row)
		if seen[key] {
			report.Items = append(report.Items, Entry{Row: row, Status: Duplicate})
			continue
		}
		seen[key] = true
		report.Items = append(report.Items, Entry{Row: row, Status: Stored})
		fresh = append(fresh, row)
	}
	report.added = len(fresh)

	if len(fresh) == 0 {
		return report, nil
	}

	if err := s.writeMaster(append(existing, fresh...)); err != nil {
		return nil, err
	}
	s.logger.Debug("appended master data", "added", report.AddedCount(), "duplicates", report.DuplicateCount())
	return report, nil
}

// Query selects invoice rows for a report.
type Query struct {
	Start  time.Time
	End    time.Time
	Entity string // canonical entity name, empty selects every entity
}

// Transactions returns the invoice rows inside the query window, oldest
// first. Rows without a document date never make it into a report.
func (s *Store) Transactions(q Query) ([]models.Row, error) {
	rows, err := s.Load()
	if err != nil {
		return nil, err
	}

	entityKey := models.NormalizeName(q.Entity)
	out := make([]models.Row, 0)
	for _, row := range rows {
		if row.Type != models.DocInvoice {
			continue
		}
		if row.Date.IsZero() {
			continue
		}
		if !q.Start.IsZero() && row.Date.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && row.Date.After(q.End) {
			continue
		}
		if entityKey != "" && models.NormalizeName(row.EntityName) != entityKey {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// Entities lists the distinct entity names that own at least one invoice
// row, sorted alphabetically.
func (s *Store) Entities() ([]string, error) {
	rows, err := s.Load()
	if err != nil {
		return nil, err
	}

	seen := map[string]string{}
	for _, row := range rows {
		if row.Type != models.DocInvoice || row.EntityName == "" {
			continue
		}
		key := models.NormalizeName(row.EntityName)
		if _, ok := seen[key]; !ok {
			seen[key] = row.EntityName
		}
	}

	names := make([]string, 0, len(seen))
	for _, name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RecentMessageIDs returns the ids of messages processed at or after the
// cutoff, for skipping emails the pipeline already handled.
func (s *Store) RecentMessageIDs(since time.Time) (map[string]bool, error) {
	file, err := os.Open(s.processedPath())
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open processed messages: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	ids := map[string]bool{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read processed messages: %w", err)
		}
		if len(record) < 2 || record[0] == "message_id" {
			continue
		}
		at, err := time.Parse(time.RFC3339, record[1])
		if err != nil {
			s.logger.Warn("skipping malformed processed message row", "error", err)
			continue
		}
		if at.Before(since) {
			continue
		}
		ids[record[0]] = true
	}
	return ids, nil
}

// MarkProcessed records that the given messages were handled at the given
// time.
func (s *Store) MarkProcessed(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	existing, err := os.ReadFile(s.processedPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read processed messages: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if len(existing) == 0 {
		writer.Write([]string{"message_id", "processed_at"})
	} else {
		buf.Write(existing)
	}
	for _, id := range ids {
		writer.Write([]string{id, at.Format(time.RFC3339)})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to encode processed messages: %w", err)
	}
	return atomicWrite(s.processedPath(), buf.Bytes())
}

func (s *Store) writeMaster(rows []models.Row) error {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write(models.Header())
	for i := range rows {
		writer.Write(rows[i].Record())
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to encode master data: %w", err)
	}
	return atomicWrite(s.masterPath(), buf.Bytes())
}

// atomicWrite replaces path through a temp file and rename, never leaving a
// partially written file behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func rowKey(row *models.Row) string {
	return row.MessageID + "|" + row.FileOrigin + "|" + row.ID()
}
