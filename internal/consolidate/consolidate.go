// Package consolidate merges enriched chunk files into yearly master
// datasets, standardizing null markers and removing duplicate reports.
package consolidate

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/aerowatch/uas-sighting-etl/internal/adapter/csvfile"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

var yearRe = regexp.MustCompile(`20\d{2}`)

// Master is one consolidated yearly dataset.
type Master struct {
	Columns []string
	Rows    [][]string
}

// Stats summarizes one consolidation pass.
type Stats struct {
	RowsIn            int
	RowsOut           int
	ExactDuplicates   int
	NearDuplicates    int
	RowsWithoutYear   int
	FilesConsolidated int
}

// Consolidator merges enriched files into yearly masters.
type Consolidator struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Consolidator.
func New(logger *slog.Logger, metrics *observability.Metrics) *Consolidator {
	return &Consolidator{logger: logger, metrics: metrics}
}

// Run partitions the files' rows by year and deduplicates each partition.
// Input order is preserved for rows that survive.
func (c *Consolidator) Run(files []csvfile.File) (map[int]Master, Stats) {
	stats := Stats{FilesConsolidated: len(files)}

	columns := columnUnion(files)
	colIndex := make(map[string]int, len(columns))
	for i, col := range columns {
		colIndex[col] = i
	}

	byYear := make(map[int][][]string)
	for _, f := range files {
		fileYear := yearFromText(f.Name)
		for _, row := range f.Rows {
			stats.RowsIn++
			aligned := alignRow(row, f.Columns, colIndex, len(columns))

			year := fileYear
			if year == 0 {
				year = yearFromText(cellByName(aligned, colIndex, dateColumn(columns)))
			}
			if year == 0 {
				stats.RowsWithoutYear++
				continue
			}
			byYear[year] = append(byYear[year], aligned)
		}
	}

	masters := make(map[int]Master, len(byYear))
	for year, rows := range byYear {
		deduped, exact, near := c.dedupe(rows, columns, colIndex)
		stats.ExactDuplicates += exact
		stats.NearDuplicates += near
		stats.RowsOut += len(deduped)
		masters[year] = Master{Columns: columns, Rows: deduped}

		c.logger.Info("year consolidated",
			"year", year, "rows", len(deduped), "exact_dups", exact, "near_dups", near)
	}

	c.metrics.DuplicatesRemoved.WithLabelValues("exact").Add(float64(stats.ExactDuplicates))
	c.metrics.DuplicatesRemoved.WithLabelValues("near").Add(float64(stats.NearDuplicates))
	return masters, stats
}

// dedupe removes exact duplicates, then collapses near-duplicates sharing
// (date, city, altitude), keeping the most complete row of each group.
func (c *Consolidator) dedupe(rows [][]string, columns []string, colIndex map[string]int) ([][]string, int, int) {
	// Exact pass: full-row signature after sentinel standardization.
	seen := make(map[string]struct{}, len(rows))
	unique := make([][]string, 0, len(rows))
	exact := 0
	for _, row := range rows {
		for i, cell := range row {
			row[i] = domain.StandardizeValue(strings.TrimSpace(cell))
		}
		sig := strings.Join(row, "\x1f")
		if _, dup := seen[sig]; dup {
			exact++
			continue
		}
		seen[sig] = struct{}{}
		unique = append(unique, row)
	}

	// Near pass: same report filed twice with small wording differences
	// still agrees on date, city, and altitude.
	dateCol := dateColumn(columns)
	cityCol := cityColumn(columns)

	type group struct {
		index int // position of the kept row in result
		blank int // empty cells in the kept row
	}
	groups := make(map[string]group, len(unique))
	result := make([][]string, 0, len(unique))
	near := 0

	for _, row := range unique {
		date := cellByName(row, colIndex, dateCol)
		city := normalizeCity(cellByName(row, colIndex, cityCol))
		alt := cellByName(row, colIndex, "Alt_Ft")

		// Rows with neither date nor city carry too little identity to
		// collapse safely.
		if date == "" && city == "" {
			result = append(result, row)
			continue
		}

		key := date + "\x1f" + city + "\x1f" + alt
		blanks := countBlank(row)
		if g, dup := groups[key]; dup {
			near++
			if blanks < g.blank {
				result[g.index] = row
				groups[key] = group{index: g.index, blank: blanks}
			}
			continue
		}
		groups[key] = group{index: len(result), blank: blanks}
		result = append(result, row)
	}

	return result, exact, near
}

// columnUnion builds the combined header: columns in order of first
// appearance across the files.
func columnUnion(files []csvfile.File) []string {
	var columns []string
	seen := make(map[string]struct{})
	for _, f := range files {
		for _, col := range f.Columns {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}
	return columns
}

func alignRow(row, fileColumns []string, colIndex map[string]int, width int) []string {
	aligned := make([]string, width)
	for i, col := range fileColumns {
		if i >= len(row) {
			break
		}
		aligned[colIndex[col]] = row[i]
	}
	return aligned
}

func cellByName(row []string, colIndex map[string]int, col string) string {
	if col == "" {
		return ""
	}
	i, ok := colIndex[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func dateColumn(columns []string) string {
	return firstMatching(columns, "date")
}

func cityColumn(columns []string) string {
	for _, kw := range []string{"city", "location", "town"} {
		if col := firstMatching(columns, kw); col != "" {
			return col
		}
	}
	return ""
}

func firstMatching(columns []string, keyword string) string {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(col), keyword) {
			return col
		}
	}
	return ""
}

func normalizeCity(city string) string {
	return strings.ToUpper(strings.Join(strings.Fields(city), " "))
}

func countBlank(row []string) int {
	n := 0
	for _, cell := range row {
		if cell == "" {
			n++
		}
	}
	return n
}

// yearFromText pulls the first plausible year out of a file name or date
// cell.
func yearFromText(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}
