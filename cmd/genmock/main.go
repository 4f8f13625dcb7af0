// Command genmock synthesises a flume station table containing a hydraulic
// jump. The supercritical reach, the jump and the subcritical tail follow the
// domain package's own relations, so the table can drive the ETL and its
// tests with known answers.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/base.txt \
//	  -result-out data/mock/expected_result.json \
//	  -stations 12 -jump-at 5 -flow 30 -y1 3.0
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the station TSV")
	resultOut := flag.String("result-out", "", "optional output path for the expected result JSON")
	opts := defaultOptions()
	flag.IntVar(&opts.Stations, "stations", opts.Stations, "number of stations")
	flag.IntVar(&opts.JumpAt, "jump-at", opts.JumpAt, "1-based sequence of the last supercritical station")
	flag.Float64Var(&opts.FlowM3H, "flow", opts.FlowM3H, "discharge in m3/h")
	flag.Float64Var(&opts.Y1CM, "y1", opts.Y1CM, "upstream depth in cm")
	flag.Float64Var(&opts.Width, "width", opts.Width, "flume width in m")
	flag.Float64Var(&opts.Offset, "offset", opts.Offset, "reference offset in m")
	flag.Float64Var(&opts.SpacingM, "spacing", opts.SpacingM, "distance between stations in m")
	flag.Uint64Var(&opts.Seed, "seed", opts.Seed, "seed for probe scatter")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	raws, err := generate(opts)
	if err != nil {
		return err
	}

	if err := writeTable(*out, raws); err != nil {
		return fmt.Errorf("writing station table: %w", err)
	}
	log.Printf("wrote %d stations: %s", len(raws), *out)

	// Fixed clock for a reproducible processed_at.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	bounds := domain.JumpBounds{Upstream: opts.JumpAt, Downstream: opts.JumpAt + 2}
	result, err := domain.Analyze(raws, domain.NewFlume(opts.Width, opts.Offset), bounds)
	if err != nil {
		return fmt.Errorf("analysing generated table: %w", err)
	}

	if *resultOut != "" {
		if err := writeJSON(*resultOut, result); err != nil {
			return fmt.Errorf("writing expected result: %w", err)
		}
		log.Printf("wrote expected result: %s", *resultOut)
	}

	printStats(result)
	return nil
}

func writeTable(path string, raws []domain.RawStation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(strings.Join(tsv.RequiredColumns, "\t"))
	b.WriteByte('\n')
	for _, r := range raws {
		fmt.Fprintf(&b, "%.2f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			r.PositionM, r.FlowM3H, r.Probe1CM, r.Probe2CM, r.Probe3CM, r.DeltaZCM)
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(result domain.Result) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Stations: %d\n", len(result.Stations))

	var super, sub int
	for _, s := range result.Stations {
		if s.Regime == domain.Supercritical {
			super++
		} else {
			sub++
		}
	}
	fmt.Printf("By regime: supercritical=%d, subcritical=%d\n", super, sub)

	fmt.Println("\nStations:")
	for _, s := range result.Stations {
		fmt.Printf("  %2d  x=%.3f  y=%.4f  Fr=%.3f  E=%.4f  %s\n",
			s.Seq, s.EffectivePosition, s.Depth, s.Froude, s.TotalEnergy, s.Regime)
	}

	fmt.Printf("\nJump %d -> %d:\n", result.Summary.Bounds.Upstream, result.Summary.Bounds.Downstream)
	for _, row := range result.Summary.Rows() {
		fmt.Printf("  %-16s %.6f\n", row.Name, row.Value)
	}
}
