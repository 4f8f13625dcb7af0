// Package tsv loads flume station tables exported from the lab spreadsheet as
// tab-separated text with a header row.
package tsv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// Required column names, in the order the lab sheet lists them.
const (
	ColPosition = "Cota_m"
	ColFlow     = "Q_m3h"
	ColProbe1   = "Yi1_cm"
	ColProbe2   = "Yi2_cm"
	ColProbe3   = "Yi3_cm"
	ColDeltaZ   = "DeltaZ_cm"
)

// RequiredColumns lists every column a station table must carry.
var RequiredColumns = []string{ColPosition, ColFlow, ColProbe1, ColProbe2, ColProbe3, ColDeltaZ}

// Reader loads a station table from a file path.
// It implements pipeline.StationExtractor.
type Reader struct {
	path   string
	logger *slog.Logger
}

// NewReader creates a Reader for the table at path.
func NewReader(path string, logger *slog.Logger) *Reader {
	return &Reader{path: path, logger: logger}
}

// Extract opens and parses the station table.
func (r *Reader) Extract(ctx context.Context) ([]domain.RawStation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open station table: %w", err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	r.logger.Debug("station table loaded", "path", r.path, "stations", len(rows))
	return rows, nil
}

// Parse reads a tab-separated station table. Every required column is checked
// before any row is parsed; extra columns are ignored.
func Parse(in io.Reader) ([]domain.RawStation, error) {
	cr := csv.NewReader(in)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty table, expected header %s", domain.ErrMissingColumn, strings.Join(RequiredColumns, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	// Rows are numbered by their distance from the header line, so blank rows
	// keep their place in the count.
	headerLine, _ := cr.FieldPos(0)

	var rows []domain.RawStation //nolint:prealloc // row count unknown until EOF
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		physical, _ := cr.FieldPos(0)

		raw, err := parseRow(rec, idx, physical-headerLine)
		if err != nil {
			return nil, err
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// columnIndex maps each required column to its position in the header and
// reports every missing column at once.
func columnIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	idx := make(map[string]int, len(RequiredColumns))
	var missing []string
	for _, col := range RequiredColumns {
		i, ok := pos[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int, line int) (domain.RawStation, error) {
	values := make(map[string]float64, len(idx))
	for _, col := range RequiredColumns {
		i := idx[col]
		if i >= len(rec) {
			return domain.RawStation{}, fmt.Errorf("%w: row %d: column %s is empty", domain.ErrInvalidRecord, line, col)
		}
		v, err := parseNumber(rec[i])
		if err != nil {
			return domain.RawStation{}, fmt.Errorf("%w: row %d: column %s: %q is not a number", domain.ErrInvalidRecord, line, col, rec[i])
		}
		values[col] = v
	}

	return domain.RawStation{
		Line:      line,
		PositionM: values[ColPosition],
		FlowM3H:   values[ColFlow],
		Probe1CM:  values[ColProbe1],
		Probe2CM:  values[ColProbe2],
		Probe3CM:  values[ColProbe3],
		DeltaZCM:  values[ColDeltaZ],
	}, nil
}

// parseNumber accepts plain decimals. Empty cells are rejected rather than
// read as zero.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty cell")
	}
	return strconv.ParseFloat(s, 64)
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
