// Package csvexport writes the rounded station table and jump summary as CSV files.
package csvexport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// Default artifact names, matching the lab's existing output files.
const (
	DefaultStationsFile = "df.output.csv"
	DefaultSummaryFile  = "df.output.02.csv"
)

// StationColumns is the header of the station table.
var StationColumns = []string{
	"Cota_m", "Q_m3h", "Yi1_cm", "Yi2_cm", "Yi3_cm", "DeltaZ_cm",
	"eff_cota", "q_m3_s", "y_m", "area", "perimeter", "radius", "radius_root",
	"vel", "Froude", "dym", "energ_total", "rule", "SEQ",
}

// SummaryColumns is the header of the summary table.
var SummaryColumns = []string{"variable_name", "value"}

// Exporter writes both tables into a directory.
// It implements pipeline.ResultLoader.
type Exporter struct {
	dir          string
	stationsFile string
	summaryFile  string
	logger       *slog.Logger
}

// NewExporter creates an Exporter. Empty file names fall back to the defaults.
func NewExporter(dir, stationsFile, summaryFile string, logger *slog.Logger) *Exporter {
	if stationsFile == "" {
		stationsFile = DefaultStationsFile
	}
	if summaryFile == "" {
		summaryFile = DefaultSummaryFile
	}
	return &Exporter{dir: dir, stationsFile: stationsFile, summaryFile: summaryFile, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (e *Exporter) Name() string { return "csv" }

// Paths returns the final locations of the station and summary tables.
func (e *Exporter) Paths() (stations, summary string) {
	return filepath.Join(e.dir, e.stationsFile), filepath.Join(e.dir, e.summaryFile)
}

// Load writes both tables and publishes them immediately.
func (e *Exporter) Load(ctx context.Context, result domain.Result) error {
	commit, _, err := e.Stage(ctx, result)
	if err != nil {
		return err
	}
	return commit()
}

// Stage writes both tables to temporary files in the target directory. Nothing
// is visible under the final names until commit runs; discard removes the
// temporary files instead. Exactly one of the two should be called.
func (e *Exporter) Stage(ctx context.Context, result domain.Result) (commit func() error, discard func(), err error) {
	stationsPath, summaryPath := e.Paths()

	stationsTmp, err := e.writeTemp(e.stationsFile, func(w io.Writer) error {
		return WriteStations(w, result.Stations)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("write station table: %w", err)
	}

	summaryTmp, err := e.writeTemp(e.summaryFile, func(w io.Writer) error {
		return WriteSummary(w, result.Summary)
	})
	if err != nil {
		os.Remove(stationsTmp) //nolint:errcheck // best-effort cleanup
		return nil, nil, fmt.Errorf("write summary table: %w", err)
	}

	discard = func() {
		os.Remove(stationsTmp) //nolint:errcheck // best-effort cleanup
		os.Remove(summaryTmp)  //nolint:errcheck // best-effort cleanup
	}
	if err := ctx.Err(); err != nil {
		discard()
		return nil, nil, err
	}

	commit = func() error {
		err := publish([]move{
			{tmp: stationsTmp, final: stationsPath},
			{tmp: summaryTmp, final: summaryPath},
		})
		if err != nil {
			return fmt.Errorf("publish tables: %w", err)
		}
		e.logger.Info("results exported",
			"run_id", result.RunID,
			"stations_path", stationsPath,
			"summary_path", summaryPath,
			"stations", len(result.Stations),
		)
		return nil
	}
	return commit, discard, nil
}

// rename is swapped in tests to simulate a failing filesystem.
var rename = os.Rename

type move struct {
	tmp, final string
	backup     string
	hadOld     bool
	published  bool
}

// publish renames every staged file into place. Existing artifacts are moved
// aside first; if any rename fails, new files are removed and the previous
// pair is restored so the two tables always belong to the same run.
func publish(moves []move) error {
	for i := range moves {
		m := &moves[i]
		m.backup = m.tmp + ".prev"
		if err := rename(m.final, m.backup); err == nil {
			m.hadOld = true
		} else if !errors.Is(err, fs.ErrNotExist) {
			rollback(moves)
			return err
		}
		if err := rename(m.tmp, m.final); err != nil {
			rollback(moves)
			return err
		}
		m.published = true
	}
	for _, m := range moves {
		if m.hadOld {
			os.Remove(m.backup) //nolint:errcheck // best-effort cleanup
		}
	}
	return nil
}

func rollback(moves []move) {
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		if m.published {
			os.Remove(m.final) //nolint:errcheck // best-effort cleanup
		}
		if m.hadOld {
			os.Rename(m.backup, m.final) //nolint:errcheck // best-effort restore
		}
		os.Remove(m.tmp) //nolint:errcheck // best-effort cleanup
	}
}

func (e *Exporter) writeTemp(name string, write func(io.Writer) error) (path string, err error) {
	f, err := os.CreateTemp(e.dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	if err := write(f); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// WriteStations writes the station table with every number rounded to
// domain.ExportDigits decimals.
func WriteStations(w io.Writer, stations []domain.StationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StationColumns); err != nil {
		return err
	}
	for _, s := range stations {
		if err := cw.Write(stationRow(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the 12-row jump summary table.
func WriteSummary(w io.Writer, summary domain.JumpSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryColumns); err != nil {
		return err
	}
	for _, row := range summary.Rows() {
		if err := cw.Write([]string{row.Name, formatValue(row.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func stationRow(s domain.StationRecord) []string {
	return []string{
		formatValue(s.Raw.PositionM),
		formatValue(s.Raw.FlowM3H),
		formatValue(s.Raw.Probe1CM),
		formatValue(s.Raw.Probe2CM),
		formatValue(s.Raw.Probe3CM),
		formatValue(s.Raw.DeltaZCM),
		formatValue(s.EffectivePosition),
		formatValue(s.FlowRate),
		formatValue(s.Depth),
		formatValue(s.Area),
		formatValue(s.Perimeter),
		formatValue(s.Radius),
		formatValue(s.RadiusRoot),
		formatValue(s.Velocity),
		formatValue(s.Froude),
		formatValue(s.DynamicHead),
		formatValue(s.TotalEnergy),
		string(s.Regime),
		strconv.Itoa(s.Seq),
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(domain.Round(v, domain.ExportDigits), 'f', -1, 64)
}
