// Package archive unpacks the zip and rar bundles invoices arrive in. Zip
// is handled natively, rar shells out to the unrar binary the same way pdf
// rasterization shells out to poppler.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"hoadon/pkg/extract"
)

type Extractor struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// UnrarAvailable reports whether the unrar binary is on PATH.
func UnrarAvailable() bool {
	_, err := exec.LookPath("unrar")
	return err == nil
}

// Extract unpacks an archive into destDir and returns the paths of every
// extracted file, sorted. Archives found inside the archive are unpacked
// one level deep, anything nested further is returned as a plain file.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	return e.extract(ctx, archivePath, destDir, 0)
}

func (e *Extractor) extract(ctx context.Context, archivePath, destDir string, depth int) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	switch typ := detectPath(archivePath); typ {
	case extract.TypeZIP:
		if err := e.extractZip(archivePath, destDir); err != nil {
			return nil, err
		}
	case extract.TypeRAR:
		if err := e.extractRar(ctx, archivePath, destDir); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("not an archive: %s", filepath.Base(archivePath))
	}

	extracted, err := listFiles(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list extracted files: %w", err)
	}

	var files []string
	for _, file := range extracted {
		if depth == 0 && detectPath(file).IsArchive() {
			nested, err := e.extract(ctx, file, file+"_extracted", depth+1)
			if err != nil {
				e.logger.Warn("failed to extract nested archive", "file", filepath.Base(file), "error", err)
				continue
			}
			files = append(files, nested...)
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

func (e *Extractor) extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	root := filepath.Clean(destDir)
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		target := filepath.Join(root, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry escapes destination: %s", f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

func (e *Extractor) extractRar(ctx context.Context, archivePath, destDir string) error {
	if !UnrarAvailable() {
		return fmt.Errorf("unrar not found on PATH, install it to process rar attachments")
	}

	cmd := exec.CommandContext(ctx, "unrar", "x", "-o+", "-inul", archivePath, destDir+string(os.PathSeparator))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("running unrar", "archive", filepath.Base(archivePath))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("unrar failed: %w: %s", err, msg)
		}
		return fmt.Errorf("unrar failed: %w", err)
	}
	return nil
}

// detectPath sniffs a file's type from its first bytes.
func detectPath(path string) extract.FileType {
	file, err := os.Open(path)
	if err != nil {
		return extract.TypeUnknown
	}
	defer file.Close()

	header := make([]byte, 8)
	n, _ := io.ReadFull(file, header)
	return extract.DetectType(filepath.Base(path), header[:n])
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
