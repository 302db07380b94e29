// Package service wires the collection and reporting phases together. Every
// per-message and per-file failure is logged and contained, a bad attachment
// never takes the run down.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"

	"hoadon/pkg/archive"
	"hoadon/pkg/config"
	"hoadon/pkg/drive"
	"hoadon/pkg/extract"
	"hoadon/pkg/mail"
	"hoadon/pkg/models"
	"hoadon/pkg/organize"
	"hoadon/pkg/pdf"
	"hoadon/pkg/registry"
	"hoadon/pkg/store"
)

type Processor struct {
	config    *config.Config
	logger    *log.Logger
	store     *store.Store
	registry  *registry.Registry
	extractor *extract.Extractor
	archives  *archive.Extractor
	converter *pdf.Converter
}

func NewProcessor(cfg *config.Config, logger *log.Logger) (*Processor, error) {
	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	extractor := extract.New(logger)
	if cfg.OpenAI.APIKey != "" || os.Getenv("OPENAI_API_KEY") != "" {
		openai, err := extract.NewOpenAI(extract.OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		extractor = extractor.WithOpenAI(openai)
	} else {
		logger.Info("no OpenAI key configured, extraction runs on rules only")
	}

	return &Processor{
		config:    cfg,
		logger:    logger,
		store:     st,
		registry:  reg,
		extractor: extractor,
		archives:  archive.New(logger),
		converter: pdf.NewConverter(logger),
	}, nil
}

// Store exposes the underlying store for the report phase and the server.
func (p *Processor) Store() *store.Store { return p.store }

// Registry exposes the company registry for entity resolution.
func (p *Processor) Registry() *registry.Registry { return p.registry }

func (p *Processor) mailOptions() mail.Options {
	return mail.Options{
		Server:   p.config.IMAP.Server,
		Port:     strconv.Itoa(p.config.IMAP.Port),
		Username: p.config.IMAP.Username,
		Password: p.config.IMAP.Password,
		Mailbox:  p.config.IMAP.Mailbox,
	}
}

// ExtractFile reads one file into a structured document. Scanned PDFs with
// no text layer go through the rasterizer and the image extractor.
func (p *Processor) ExtractFile(ctx context.Context, path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := p.extractor.ProcessBytes(ctx, data, filepath.Base(path))
	if err == nil {
		return doc, nil
	}

	if extract.DetectType(filepath.Base(path), data) == extract.TypePDF && pdf.Available() {
		p.logger.Debug("trying rasterized extraction", "file", filepath.Base(path), "reason", err)
		png, rasterErr := p.converter.FirstPageImage(ctx, path)
		if rasterErr != nil {
			return nil, fmt.Errorf("rasterize %s: %w", filepath.Base(path), rasterErr)
		}
		return p.extractor.ExtractImage(ctx, png)
	}
	return nil, err
}

// sinks builds the organization targets for collection. The local archive
// sink always runs; a Drive sink joins it when driveSink yields one.
func (p *Processor) sinks(ctx context.Context, driveLink string, upload bool) ([]organize.Sink, error) {
	targets := []organize.Sink{organize.NewLocalSink(p.config.Archive, p.logger)}
	sink, err := p.driveSink(ctx, driveLink, upload)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		targets = append(targets, sink)
	}
	return targets, nil
}

// driveSink returns a verified Drive sink, or nil when uploading is off or
// no link is supplied or configured. An inaccessible folder is an error,
// not a silent skip.
func (p *Processor) driveSink(ctx context.Context, driveLink string, upload bool) (organize.Sink, error) {
	if !upload {
		return nil, nil
	}
	link := driveLink
	if link == "" {
		link = p.config.Drive.FolderLink
	}
	if link == "" {
		p.logger.Debug("no drive link configured, organizing locally only")
		return nil, nil
	}

	client, err := p.driveClient(ctx)
	if err != nil {
		return nil, err
	}
	return organize.NewDriveSink(ctx, client, link, p.logger)
}

func (p *Processor) driveClient(ctx context.Context) (*drive.Client, error) {
	if p.config.Drive.TokenFile != "" {
		return drive.NewOAuth(ctx, p.config.Drive.CredentialsFile, p.config.Drive.TokenFile, p.logger)
	}
	return drive.New(ctx, p.config.Drive.CredentialsFile, p.logger)
}
