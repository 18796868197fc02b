// Command sweep-temp removes logo and workbook artifacts left in the
// pipeline temp dir by runs that died before cleaning up. It is intended to
// be invoked by an external cron job, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/brandkit/internal/app"
	"github.com/heartmarshall/brandkit/internal/config"
	"github.com/heartmarshall/brandkit/internal/document"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	cutoff := time.Now().Add(-cfg.Pipeline.TempRetention)

	removed, err := document.Sweep(cfg.Pipeline.TempDir, cutoff, logger)
	if err != nil {
		logger.Error("sweep failed",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		os.Exit(1)
	}

	logger.Info("sweep completed",
		slog.Int("removed", removed),
		slog.Time("cutoff", cutoff),
	)
}
