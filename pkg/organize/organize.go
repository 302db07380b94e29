// Package organize ships finished report bundles to their destination,
// either a local archive directory or a shared Drive folder.
package organize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"hoadon/pkg/drive"
	"hoadon/pkg/models"
)

// Bundle is one generated report directory ready to be shipped.
type Bundle struct {
	Entity string
	Period string
	Dir    string
}

// Summary reports what a sink did with a bundle.
type Summary struct {
	Destination string
	Stored      int
	Failed      int
}

// Sink receives report bundles.
type Sink interface {
	Name() string
	Store(ctx context.Context, bundle Bundle) (Summary, error)
}

// LocalSink copies bundles under a local archive root.
type LocalSink struct {
	logger *log.Logger
	root   string
}

func NewLocalSink(root string, logger *log.Logger) *LocalSink {
	return &LocalSink{logger: logger, root: root}
}

func (s *LocalSink) Name() string { return "local" }

func (s *LocalSink) Store(ctx context.Context, bundle Bundle) (Summary, error) {
	dest := filepath.Join(s.root, models.SafeFileName(bundle.Entity), bundle.Period)
	summary := Summary{Destination: dest}

	err := filepath.WalkDir(bundle.Dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(bundle.Dir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dest, rel)); err != nil {
			s.logger.Warn("copy failed", "file", rel, "error", err)
			summary.Failed++
			return nil
		}
		summary.Stored++
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("archive bundle %s: %w", bundle.Dir, err)
	}
	s.logger.Info("bundle archived", "entity", bundle.Entity, "dest", dest, "files", summary.Stored)
	return summary, nil
}

// DriveSink uploads bundles into a shared Drive folder, one child folder per
// entity and period.
type DriveSink struct {
	logger *log.Logger
	client *drive.Client
	folder string
}

// NewDriveSink parses and verifies the shared folder link up front, so a bad
// link fails before any report is generated.
func NewDriveSink(ctx context.Context, client *drive.Client, link string, logger *log.Logger) (*DriveSink, error) {
	id, err := drive.ParseFolderID(link)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyFolder(ctx, id); err != nil {
		return nil, err
	}
	return &DriveSink{logger: logger, client: client, folder: id}, nil
}

func (s *DriveSink) Name() string { return "drive" }

func (s *DriveSink) Store(ctx context.Context, bundle Bundle) (Summary, error) {
	entityFolder, err := s.client.EnsureFolder(ctx, s.folder, bundle.Entity)
	if err != nil {
		return Summary{}, err
	}
	periodFolder, err := s.client.EnsureFolder(ctx, entityFolder, bundle.Period)
	if err != nil {
		return Summary{}, err
	}
	uploaded, failed, err := s.client.UploadDir(ctx, periodFolder, bundle.Dir)
	summary := Summary{
		Destination: "drive folder " + periodFolder,
		Stored:      uploaded,
		Failed:      failed,
	}
	if err != nil {
		return summary, fmt.Errorf("upload bundle %s: %w", bundle.Dir, err)
	}
	return summary, nil
}

// StageFiles copies the named files flat into dir, creating it as needed.
// Repeated paths are copied once. It is the staging step between scattered
// download folders and a per-entity bundle.
func StageFiles(dir string, files []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	done := make(map[string]bool, len(files))
	for _, src := range files {
		if done[src] {
			continue
		}
		done[src] = true
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return fmt.Errorf("stage %s: %w", filepath.Base(src), err)
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
