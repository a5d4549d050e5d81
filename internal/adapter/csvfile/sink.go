package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

// Sink implements pipeline.BatchLoader, writing one Enriched_<chunk> CSV per
// source chunk. The header is the chunk's original columns followed by the
// derived columns. Not safe for concurrent use.
type Sink struct {
	dir    string
	logger *slog.Logger

	started map[string]bool // chunks whose header has been written this run
}

// NewSink creates a sink writing under dir.
func NewSink(dir string, logger *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Sink{dir: dir, logger: logger, started: make(map[string]bool)}, nil
}

// LoadBatch appends the batch to the per-chunk output files.
func (s *Sink) LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Group by chunk, preserving record order within each.
	var order []string
	grouped := make(map[string][]domain.EnrichedRecord)
	for _, rec := range records {
		if _, seen := grouped[rec.SourceChunk]; !seen {
			order = append(order, rec.SourceChunk)
		}
		grouped[rec.SourceChunk] = append(grouped[rec.SourceChunk], rec)
	}

	for _, chunk := range order {
		if err := s.writeChunk(chunk, grouped[chunk]); err != nil {
			return fmt.Errorf("write enriched %s: %w", chunk, err)
		}
	}
	return nil
}

func (s *Sink) writeChunk(chunk string, records []domain.EnrichedRecord) error {
	path := filepath.Join(s.dir, EnrichedPrefix+chunk)

	flags := os.O_CREATE | os.O_WRONLY
	if s.started[chunk] {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	columns := records[0].Columns
	if !s.started[chunk] {
		if err := w.Write(append(append([]string{}, columns...), domain.DerivedColumns...)); err != nil {
			return err
		}
		s.started[chunk] = true
	}

	for _, rec := range records {
		row := make([]string, 0, len(columns)+len(domain.DerivedColumns))
		for _, col := range columns {
			row = append(row, rec.Values[col])
		}
		row = append(row, rec.DerivedValues()...)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.logger.Debug("enriched records written", "chunk", chunk, "records", len(records))
	return nil
}

// File is one CSV read whole, for consolidation.
type File struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ReadEnrichedDir loads every enriched chunk file under dir, sorted by name.
func ReadEnrichedDir(dir string) ([]File, error) {
	paths, err := filepath.Glob(filepath.Join(dir, EnrichedPrefix+"*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob enriched dir: %w", err)
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		f, err := readFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return File{Name: filepath.Base(path)}, nil
	}
	return File{Name: filepath.Base(path), Columns: rows[0], Rows: rows[1:]}, nil
}

// WriteMaster writes a consolidated yearly master file atomically.
func WriteMaster(path string, columns []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create master dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create master: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
