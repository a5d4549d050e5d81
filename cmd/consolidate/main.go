// Command consolidate merges every enriched chunk CSV under the processed
// tree into one master dataset per calendar year, standardizing null
// markers and dropping duplicate reports along the way.
//
// Usage:
//
//	go run ./cmd/consolidate            # consolidate all run dates
//	go run ./cmd/consolidate -run-date 2026-08-23
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/aerowatch/uas-sighting-etl/internal/adapter/csvfile"
	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/consolidate"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

func main() {
	runDate := flag.String("run-date", "", "consolidate a single run date folder; empty means all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics, *runDate); err != nil {
		logger.Error("consolidation failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, runDate string) error {
	dirs, err := processedDirs(cfg, runDate)
	if err != nil {
		return err
	}

	var files []csvfile.File
	for _, dir := range dirs {
		fs, err := csvfile.ReadEnrichedDir(dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		files = append(files, fs...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no enriched files under %s", cfg.ProcessedRoot())
	}

	masters, stats := consolidate.New(logger, metrics).Run(files)

	years := make([]int, 0, len(masters))
	for year := range masters {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		m := masters[year]
		path := filepath.Join(cfg.YearlyDir(), fmt.Sprintf("FAA_Master_%d.csv", year))
		if err := csvfile.WriteMaster(path, m.Columns, m.Rows); err != nil {
			return fmt.Errorf("write master %d: %w", year, err)
		}
		logger.Info("master written", "year", year, "rows", len(m.Rows), "path", path)
	}

	logger.Info("consolidation complete",
		"files", stats.FilesConsolidated,
		"rows_in", stats.RowsIn,
		"rows_out", stats.RowsOut,
		"exact_duplicates", stats.ExactDuplicates,
		"near_duplicates", stats.NearDuplicates,
		"rows_without_year", stats.RowsWithoutYear,
	)
	return nil
}

// processedDirs lists the dated folders to consolidate.
func processedDirs(cfg *config.Config, runDate string) ([]string, error) {
	if runDate != "" {
		return []string{cfg.ProcessedDir(runDate)}, nil
	}

	entries, err := os.ReadDir(cfg.ProcessedRoot())
	if err != nil {
		return nil, fmt.Errorf("list processed root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(cfg.ProcessedRoot(), e.Name()))
		}
	}
	sort.Strings(dirs)
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no run folders under %s", cfg.ProcessedRoot())
	}
	return dirs, nil
}
