// Package pdf shells out to poppler's pdftoppm to turn PDF pages into PNG
// images. Scanned invoices carry no text layer, the rendered first page is
// what the model reads for them.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const defaultDPI = 150

type Converter struct {
	logger *log.Logger
	dpi    int
}

func NewConverter(logger *log.Logger) *Converter {
	return &Converter{logger: logger, dpi: defaultDPI}
}

// Available reports whether pdftoppm is on PATH.
func Available() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// FirstPageImage renders page one of a PDF as PNG bytes.
func (c *Converter) FirstPageImage(ctx context.Context, pdfPath string) ([]byte, error) {
	if !Available() {
		return nil, fmt.Errorf("pdftoppm not found: install poppler (apt install poppler-utils, brew install poppler)")
	}

	tempDir, err := os.MkdirTemp("", "hoadon-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outputBase := filepath.Join(tempDir, "page")
	if err := c.run(ctx, "-png", "-singlefile", "-r", fmt.Sprint(c.dpi), pdfPath, outputBase); err != nil {
		return nil, err
	}

	imageData, err := os.ReadFile(outputBase + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}
	c.logger.Debug("rasterized first page", "file", filepath.Base(pdfPath), "bytes", len(imageData))
	return imageData, nil
}

func (c *Converter) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("failed to convert PDF to image: %w: %s", err, msg)
		}
		return fmt.Errorf("failed to convert PDF to image: %w", err)
	}
	return nil
}
