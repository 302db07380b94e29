package mail

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"hoadon/pkg/models"
)

// Saver writes downloaded attachments to disk, skipping byte identical
// duplicates and numbering name collisions. One Saver covers one collect
// run.
type Saver struct {
	logger *log.Logger
	hashes map[string]string
}

func NewSaver(logger *log.Logger) *Saver {
	return &Saver{logger: logger, hashes: map[string]string{}}
}

// Save writes data under a sanitized version of filename inside dir.
// Returns the written path, or "" when the same bytes were saved before.
func (s *Saver) Save(dir, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to save empty attachment %s", filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("%x", sum)
	if existing, ok := s.hashes[key]; ok {
		s.logger.Debug("skipping duplicate attachment", "filename", filename, "existing", existing)
		return "", nil
	}

	name := models.SafeFileName(filename)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	path := filepath.Join(dir, name)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if counter > 100 {
			return "", fmt.Errorf("too many name collisions for %s", name)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}
	s.hashes[key] = filepath.Base(path)
	return path, nil
}
