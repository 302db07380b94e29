package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hoadon/pkg/extract"
	"hoadon/pkg/models"
	"hoadon/pkg/standardize"
)

// ProcessDirectory walks a local directory of already downloaded files
// through the unpack, extract, standardize and store path. It is the
// offline twin of Collect for files that did not arrive by mail.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (*CollectSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	summary := &CollectSummary{}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			p.logger.Error("failed to read entry", "file", entry.Name(), "error", err)
			summary.Failures++
			continue
		}
		if extract.DetectType(entry.Name(), data).IsArchive() {
			extracted, err := p.archives.Extract(ctx, path, path+"_extracted")
			if err != nil {
				p.logger.Error("archive extraction failed", "file", entry.Name(), "error", err)
				summary.Failures++
				continue
			}
			summary.Archives++
			files = append(files, extracted...)
			continue
		}
		files = append(files, path)
	}

	now := time.Now()
	rows := make([]models.Row, 0, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		row := models.Row{
			MessageID:   "local:" + absDir,
			FileOrigin:  file,
			FileName:    filepath.Base(file),
			FileType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(file)), "."),
			ProcessedAt: now,
		}

		p.logger.Info("processing file", "path", file)
		doc, err := p.ExtractFile(ctx, file)
		if err != nil {
			p.logger.Warn("extraction failed", "file", row.FileName, "error", err)
			row.Skipped = true
			row.Error = err.Error()
			row.Document = models.Document{Direction: models.DirectionUnknown}
			summary.Failures++
		} else {
			row.Processed = true
			row.Document = *doc
			summary.Documents++
		}
		rows = append(rows, row)
	}

	var docs []*models.Document
	for i := range rows {
		if rows[i].Processed {
			docs = append(docs, &rows[i].Document)
		}
	}
	if len(docs) > 0 {
		dom := standardize.Apply(docs, p.registry)
		p.logger.Debug("directory standardized", "dir", dir, "entity", dom.Name)
	}

	if len(rows) > 0 {
		appendReport, err := p.store.Append(rows)
		if err != nil {
			return summary, fmt.Errorf("store rows: %w", err)
		}
		summary.Stored = appendReport.AddedCount()
		summary.Duplicates = appendReport.DuplicateCount()
	}

	p.logger.Info("directory processed",
		"dir", dir,
		"files", len(files),
		"documents", summary.Documents,
		"stored", summary.Stored)
	return summary, nil
}
