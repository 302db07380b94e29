package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hoadon/pkg/organize"
	"hoadon/pkg/report"
	"hoadon/pkg/store"
	"hoadon/pkg/timewindow"
)

type ReportOptions struct {
	Entity    string
	Mass      bool
	Start     time.Time
	End       time.Time
	Output    string
	Template  string
	DriveLink string
	Upload    bool
}

type EntityReport struct {
	Entity string
	Result *report.Result
}

type ReportSummary struct {
	Generated    []EntityReport
	Skipped      []string
	Uploaded     int
	UploadFailed int
}

// Reports runs phase two: query the store per entity and write the report
// bundles, uploading them when a Drive sink is available. With neither
// --entity nor --mass-generation every stored entity is reported, and mass
// generation wins over a named entity.
func (p *Processor) Reports(ctx context.Context, opts ReportOptions) (*ReportSummary, error) {
	if opts.Mass && opts.Entity != "" {
		p.logger.Info("mass generation requested, ignoring entity flag", "entity", opts.Entity)
		opts.Entity = ""
	}

	end := opts.End
	if end.IsZero() {
		end = time.Now()
	}
	start := opts.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("report range ends %s before it starts %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	output := opts.Output
	if output == "" {
		output = p.config.Output
	}
	template := opts.Template
	if template == "" {
		template = p.config.Template
	}

	var entities []string
	if opts.Entity != "" {
		entities = []string{p.registry.Canonical(opts.Entity)}
	} else {
		all, err := p.store.Entities()
		if err != nil {
			return nil, err
		}
		entities = all
		if !opts.Mass {
			p.logger.Info("no entity selected, generating for every stored entity")
		}
	}

	sink, err := p.driveSink(ctx, opts.DriveLink, opts.Upload)
	if err != nil {
		return nil, err
	}

	generator := report.New(output, template, p.logger)
	period := fmt.Sprintf("%s_to_%s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	summary := &ReportSummary{}
	for _, entity := range entities {
		if strings.TrimSpace(entity) == "" {
			continue
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		rows, err := p.store.Transactions(store.Query{Start: start, End: end, Entity: entity})
		if err != nil {
			return summary, err
		}
		if len(rows) == 0 {
			p.logger.Warn("no documents for entity in range", "entity", entity, "period", period)
			summary.Skipped = append(summary.Skipped, entity)
			continue
		}

		result, err := generator.Generate(entity, start, end, rows)
		if err != nil {
			p.logger.Error("report generation failed", "entity", entity, "error", err)
			summary.Skipped = append(summary.Skipped, entity)
			continue
		}
		summary.Generated = append(summary.Generated, EntityReport{Entity: entity, Result: result})

		if sink != nil {
			uploadResult, err := sink.Store(ctx, organize.Bundle{Entity: entity, Period: period, Dir: result.Dir})
			if err != nil {
				p.logger.Error("report upload failed", "entity", entity, "error", err)
			}
			summary.Uploaded += uploadResult.Stored
			summary.UploadFailed += uploadResult.Failed
		}
	}
	return summary, nil
}

type RunOptions struct {
	Window    timewindow.Window
	Entity    string
	Mass      bool
	DriveLink string
	MaxEmails int
	Upload    bool
}

type RunSummary struct {
	Collect *CollectSummary
	Reports *ReportSummary
}

// Run is the full pipeline: collect, then report on the default range. When
// the window holds no email data the report phase is skipped and the run
// still succeeds.
func (p *Processor) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	collected, err := p.Collect(ctx, CollectOptions{
		Window:    opts.Window,
		MaxEmails: opts.MaxEmails,
		DriveLink: opts.DriveLink,
		Upload:    opts.Upload,
	})
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{Collect: collected}
	if collected.NoData {
		p.logger.Info("no email data, skipping report generation")
		return summary, nil
	}

	reports, err := p.Reports(ctx, ReportOptions{
		Entity:    opts.Entity,
		Mass:      opts.Mass,
		DriveLink: opts.DriveLink,
		Upload:    opts.Upload,
	})
	if err != nil {
		return summary, err
	}
	summary.Reports = reports
	return summary, nil
}
