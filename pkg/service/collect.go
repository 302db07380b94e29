package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hoadon/pkg/extract"
	"hoadon/pkg/mail"
	"hoadon/pkg/models"
	"hoadon/pkg/organize"
	"hoadon/pkg/standardize"
	"hoadon/pkg/timewindow"
)

// Messages already marked processed within this lookback are skipped, so
// overlapping windows across runs do not duplicate work.
const processedLookback = 7 * 24 * time.Hour

type CollectOptions struct {
	Window    timewindow.Window
	MaxEmails int
	DriveLink string
	Upload    bool
}

// CollectSummary is what one collection run did, for the CLI to render.
type CollectSummary struct {
	Window       string
	Messages     int
	Relevant     int
	Attachments  int
	Archives     int
	Documents    int
	Stored       int
	Duplicates   int
	Failures     int
	Organized    int
	Uploaded     int
	UploadFailed int
	NoData       bool
}

// Collect runs phase one: fetch mail in the window, download and unpack
// attachments, extract document fields, standardize entities, append to the
// store and organize the files per company.
func (p *Processor) Collect(ctx context.Context, opts CollectOptions) (*CollectSummary, error) {
	if err := p.config.ValidateMail(); err != nil {
		return nil, err
	}

	// Fail on a bad or inaccessible Drive folder before touching the
	// mailbox.
	sinks, err := p.sinks(ctx, opts.DriveLink, opts.Upload)
	if err != nil {
		return nil, err
	}

	start, end := opts.Window.Bounds(time.Now())
	summary := &CollectSummary{Window: opts.Window.String()}

	client, err := mail.Connect(p.mailOptions(), p.logger)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	uids, err := client.Search(start, end)
	if err != nil {
		return nil, err
	}
	messages := []mail.Message{}
	if len(uids) > 0 {
		if messages, err = client.Fetch(uids, start); err != nil {
			return nil, err
		}
	}
	summary.Messages = len(messages)
	if len(messages) == 0 {
		summary.NoData = true
		p.logger.Info("no email data in window", "window", opts.Window.String())
		return summary, nil
	}

	seen, err := p.store.RecentMessageIDs(end.Add(-processedLookback))
	if err != nil {
		return nil, err
	}

	saver := mail.NewSaver(p.logger)
	downloads := filepath.Join(p.config.DataDir, "downloads")

	var rows []models.Row
	var processedIDs []string
	for _, msg := range messages {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if msg.MessageID != "" && seen[msg.MessageID] {
			p.logger.Debug("message already processed", "message", msg.MessageID)
			continue
		}
		if !mail.Relevant(msg, p.config.Keywords) {
			p.logger.Debug("message not relevant", "subject", msg.Subject)
			if msg.MessageID != "" {
				processedIDs = append(processedIDs, msg.MessageID)
			}
			continue
		}
		if opts.MaxEmails > 0 && summary.Relevant >= opts.MaxEmails {
			p.logger.Info("max emails reached, stopping early", "max", opts.MaxEmails)
			break
		}
		summary.Relevant++

		msgRows, ok := p.collectMessage(ctx, client, saver, downloads, msg, summary)
		rows = append(rows, msgRows...)
		if ok && msg.MessageID != "" {
			processedIDs = append(processedIDs, msg.MessageID)
		}
	}

	if len(rows) > 0 {
		appendReport, err := p.store.Append(rows)
		if err != nil {
			return summary, fmt.Errorf("store rows: %w", err)
		}
		summary.Stored = appendReport.AddedCount()
		summary.Duplicates = appendReport.DuplicateCount()
	}

	if len(processedIDs) > 0 {
		if err := p.store.MarkProcessed(processedIDs, time.Now()); err != nil {
			p.logger.Error("could not record processed messages", "error", err)
		}
	}

	p.organizeRows(ctx, sinks, rows, end.Format("2006-01-02"), summary)

	p.logger.Info("collection finished",
		"messages", summary.Messages,
		"relevant", summary.Relevant,
		"documents", summary.Documents,
		"stored", summary.Stored,
		"failures", summary.Failures)
	return summary, nil
}

// collectMessage downloads, unpacks and extracts one message. The returned
// flag is false when any part of it failed, which keeps the message
// unmarked so the next run retries it.
func (p *Processor) collectMessage(ctx context.Context, client *mail.Client, saver *mail.Saver, downloads string, msg mail.Message, summary *CollectSummary) ([]models.Row, bool) {
	dir := filepath.Join(downloads, messageSlug(msg))
	ok := true

	var files []string
	for _, att := range msg.Attachments {
		if mail.Decoration(att.Filename) {
			p.logger.Debug("skipping decoration image", "file", att.Filename)
			continue
		}
		data, err := client.Download(msg.UID, att)
		if err != nil {
			p.logger.Error("attachment download failed", "file", att.Filename, "error", err)
			summary.Failures++
			ok = false
			continue
		}
		path, err := saver.Save(dir, att.Filename, data)
		if err != nil {
			p.logger.Error("attachment save failed", "file", att.Filename, "error", err)
			summary.Failures++
			ok = false
			continue
		}
		if path == "" {
			// same content already saved in this run
			continue
		}
		summary.Attachments++

		if extract.DetectType(filepath.Base(path), data).IsArchive() {
			extracted, err := p.archives.Extract(ctx, path, path+"_extracted")
			if err != nil {
				p.logger.Error("archive extraction failed", "file", att.Filename, "error", err)
				summary.Failures++
				ok = false
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
		row := models.Row{
			MessageID:       msg.MessageID,
			EmailDate:       msg.Date,
			InternalDate:    msg.InternalDate,
			Subject:         msg.Subject,
			From:            msg.From,
			AttachmentCount: len(msg.Attachments),
			FileOrigin:      file,
			FileName:        filepath.Base(file),
			FileType:        strings.TrimPrefix(strings.ToLower(filepath.Ext(file)), "."),
			ProcessedAt:     now,
		}

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
		p.logger.Debug("message standardized", "message", msg.MessageID, "entity", dom.Name)
	}
	return rows, ok
}

// organizeRows groups the run's files by standardized entity and hands each
// group to every sink.
func (p *Processor) organizeRows(ctx context.Context, sinks []organize.Sink, rows []models.Row, period string, summary *CollectSummary) {
	byEntity := make(map[string][]string)
	for _, row := range rows {
		if row.EntityName == "" || row.FileOrigin == "" {
			continue
		}
		byEntity[row.EntityName] = append(byEntity[row.EntityName], row.FileOrigin)
	}
	if len(byEntity) == 0 {
		return
	}

	staging, err := os.MkdirTemp("", "hoadon-organize-*")
	if err != nil {
		p.logger.Error("could not create staging dir", "error", err)
		summary.Failures++
		return
	}
	defer os.RemoveAll(staging)

	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		dir := filepath.Join(staging, models.SafeFileName(entity))
		if err := organize.StageFiles(dir, byEntity[entity]); err != nil {
			p.logger.Error("staging failed", "entity", entity, "error", err)
			summary.Failures++
			continue
		}
		bundle := organize.Bundle{Entity: entity, Period: period, Dir: dir}
		for _, sink := range sinks {
			result, err := sink.Store(ctx, bundle)
			if err != nil {
				p.logger.Error("organize failed", "sink", sink.Name(), "entity", entity, "error", err)
				summary.Failures++
			}
			if sink.Name() == "drive" {
				summary.Uploaded += result.Stored
				summary.UploadFailed += result.Failed
			} else {
				summary.Organized += result.Stored
			}
		}
	}
}

func messageSlug(msg mail.Message) string {
	id := strings.Trim(msg.MessageID, "<>")
	if id == "" {
		id = fmt.Sprintf("uid-%d", msg.UID)
	}
	return models.SafeFileName(id)
}
