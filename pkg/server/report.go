package server

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hoadon/pkg/models"
	"hoadon/pkg/service"
)

// handleReport generates the report bundle for one entity and date range
// and streams it back as a zip.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	entity := r.FormValue("entity")
	if entity == "" {
		s.respondError(w, r, http.StatusBadRequest, "entity required", nil)
		return
	}

	start, end, err := parseRange(r.FormValue("start_date"), r.FormValue("end_date"))
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	tmpDir, err := os.MkdirTemp("", "hoadon-report-*")
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "failed to stage report", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	summary, err := s.processor.Reports(r.Context(), service.ReportOptions{
		Entity: entity,
		Start:  start,
		End:    end,
		Output: tmpDir,
	})
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "report generation failed", err)
		return
	}
	if len(summary.Generated) == 0 {
		s.respondError(w, r, http.StatusNotFound, "no documents for entity in range", nil)
		return
	}

	name := fmt.Sprintf("%s_%s_to_%s.zip",
		models.SafeFileName(entity), start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	zw := zip.NewWriter(w)
	if err := zipDir(zw, summary.Generated[0].Result.Dir); err != nil {
		s.logger.Warn("failed to stream report zip", "err", err)
	}
	if err := zw.Close(); err != nil {
		s.logger.Warn("failed to close report zip", "err", err)
	}
}

func parseRange(startValue, endValue string) (time.Time, time.Time, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -30)
	var err error
	if endValue != "" {
		if end, err = time.Parse("2006-01-02", endValue); err != nil {
			return start, end, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		start = end.AddDate(0, 0, -30)
	}
	if startValue != "" {
		if start, err = time.Parse("2006-01-02", startValue); err != nil {
			return start, end, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end_date is before start_date")
	}
	return start, end, nil
}

// zipDir writes every regular file under dir into zw, with paths relative
// to dir.
func zipDir(zw *zip.Writer, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
