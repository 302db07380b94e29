// Package extract turns raw attachments into structured documents. A chat
// completion model does the reading when an API key is configured, a regex
// rule set covers the rest.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

type Extractor struct {
	logger *log.Logger
	openai *OpenAI
	rules  *Rules
}

func New(logger *log.Logger) *Extractor {
	return &Extractor{
		logger: logger,
		rules:  NewRules(logger),
	}
}

// WithOpenAI enables the model backed extractor in front of the rules.
func (e *Extractor) WithOpenAI(o *OpenAI) *Extractor {
	e.openai = o
	return e
}

// ProcessBytes extracts a structured document from one attachment.
func (e *Extractor) ProcessBytes(ctx context.Context, data []byte, filename string) (*models.Document, error) {
	fileType := DetectType(filename, data)
	e.logger.Debug("detected file type", "type", fileType, "filename", filename)

	var text string
	var err error
	switch fileType {
	case TypePDF:
		text, err = pdfText(data)
	case TypeXLS:
		text, err = xlsText(data)
	case TypeXLSX:
		text, err = xlsxText(data)
	case TypeXML, TypeCSV, TypeText:
		text = string(data)
	case TypeImage:
		return e.ExtractImage(ctx, data)
	case TypeZIP, TypeRAR:
		return nil, fmt.Errorf("archive must be extracted before processing")
	default:
		return nil, fmt.Errorf("unknown file type")
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text found in %s", filename)
	}
	return e.ExtractText(ctx, text)
}

// ExtractImage reads a page image. Only the model can do this, so without
// one the document is reported as unreadable.
func (e *Extractor) ExtractImage(ctx context.Context, png []byte) (*models.Document, error) {
	if e.openai == nil {
		return nil, fmt.Errorf("image has no text layer and no model is configured")
	}
	return e.openai.ExtractImage(ctx, png)
}

// ExtractText runs field extraction on already decoded text. The model is
// tried first when configured, rules are the fallback either way.
func (e *Extractor) ExtractText(ctx context.Context, text string) (*models.Document, error) {
	if e.openai != nil {
		doc, err := e.openai.Extract(ctx, text)
		if err == nil {
			return doc, nil
		}
		e.logger.Warn("model extraction failed, falling back to rules", "error", err)
	}
	return e.rules.Extract(text)
}
