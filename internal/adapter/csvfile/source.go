// Package csvfile reads sighting chunk files and writes enriched and
// consolidated CSV output.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

// EnrichedPrefix marks chunk output files. A chunk whose enriched file
// already exists is considered done and is skipped on later runs.
const EnrichedPrefix = "Enriched_"

// Column detection keywords, matched case-insensitively as substrings of
// header names. Upstream exports are inconsistent about header naming.
var (
	narrativeKeywords = []string{"summary", "narrative", "description", "remarks", "event"}
	cityKeywords      = []string{"city", "location", "town"}
	stateKeywords     = []string{"state", "province"}
)

// DetectColumns finds the narrative, city, and state columns in a header.
// Missing city/state columns are allowed; a missing narrative column is an
// error because nothing can be extracted without it.
func DetectColumns(header []string) (narrative, city, state string, err error) {
	match := func(keywords []string) string {
		for _, col := range header {
			lower := strings.ToLower(col)
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					return col
				}
			}
		}
		return ""
	}
	narrative = match(narrativeKeywords)
	if narrative == "" {
		return "", "", "", fmt.Errorf("no narrative column in header %v", header)
	}
	return narrative, match(cityKeywords), match(stateKeywords), nil
}

// Source implements pipeline.BatchExtractor over a directory of chunk CSV
// files. Chunks are processed in name order, one at a time; records from a
// chunk are handed out in batchSize slices. Not safe for concurrent use.
type Source struct {
	splitDir string
	logger   *slog.Logger

	chunks  []string // remaining chunk file names
	pending []domain.RawRecord
}

// NewSource discovers the chunks under splitDir, skipping any whose
// enriched output already exists under processedDir.
func NewSource(splitDir, processedDir string, logger *slog.Logger) (*Source, error) {
	entries, err := os.ReadDir(splitDir)
	if err != nil {
		return nil, fmt.Errorf("list chunk dir: %w", err)
	}

	var chunks []string
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if _, err := os.Stat(filepath.Join(processedDir, EnrichedPrefix+e.Name())); err == nil {
			skipped++
			continue
		}
		chunks = append(chunks, e.Name())
	}
	sort.Strings(chunks)

	logger.Info("chunk source ready", "dir", splitDir, "chunks", len(chunks), "already_processed", skipped)
	return &Source{splitDir: splitDir, logger: logger, chunks: chunks}, nil
}

// ExtractBatch returns up to batchSize records, loading the next chunk when
// the current one is exhausted. Returns io.EOF once every chunk is consumed.
func (s *Source) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for len(s.pending) == 0 {
		if len(s.chunks) == 0 {
			return nil, io.EOF
		}
		name := s.chunks[0]
		s.chunks = s.chunks[1:]

		records, err := s.readChunk(name)
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", name, err)
		}
		if len(records) == 0 {
			s.logger.Warn("chunk has no data rows", "chunk", name)
			continue
		}
		s.pending = records
	}

	n := batchSize
	if n > len(s.pending) {
		n = len(s.pending)
	}
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *Source) readChunk(name string) ([]domain.RawRecord, error) {
	f, err := os.Open(filepath.Join(s.splitDir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	narrativeCol, cityCol, stateCol, err := DetectColumns(header)
	if err != nil {
		return nil, err
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[col] = i
	}

	cell := func(row []string, col string) string {
		if col == "" {
			return ""
		}
		i, ok := colIndex[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]domain.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				values[col] = row[i]
			}
		}
		records = append(records, domain.RawRecord{
			SourceChunk: name,
			Columns:     header,
			Values:      values,
			Narrative:   cell(row, narrativeCol),
			City:        cell(row, cityCol),
			State:       cell(row, stateCol),
		})
	}
	return records, nil
}
