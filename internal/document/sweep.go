package document

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Temp file patterns used by Customizer.
const (
	logoPattern     = "logo-*.png"
	workbookPattern = "invoice-*.xlsx"
)

// Sweep deletes logo and workbook artifacts in dir last modified before
// cutoff. It recovers files orphaned when a process died mid-run and returns
// the number of files removed. Empty dir means os.TempDir().
func Sweep(dir string, cutoff time.Time, log *slog.Logger) (int, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	removed := 0
	for _, pattern := range []string{logoPattern, workbookPattern} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return removed, fmt.Errorf("sweep: glob %s: %w", pattern, err)
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warn("sweep: stat failed", slog.String("path", path), slog.String("error", err.Error()))
				}
				continue
			}
			if info.IsDir() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn("sweep: remove failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
