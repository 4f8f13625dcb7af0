// Command validate checks exported flume artifacts against their source
// station table. It re-derives every station, compares the exported cells and
// verifies the physical identities that must hold between exported columns.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input data/mock/base.txt \
//	  -stations out/df.output.csv \
//	  -summary out/df.output.02.csv \
//	  -width 0.086 -offset 15 -upstream 5 -downstream 7
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/tsv"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

type options struct {
	input      string
	stations   string
	summary    string
	width      float64
	offset     float64
	upstream   int
	downstream int
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var o options
	flag.StringVar(&o.input, "input", "", "source station TSV")
	flag.StringVar(&o.stations, "stations", "", "exported station table CSV")
	flag.StringVar(&o.summary, "summary", "", "exported summary CSV")
	flag.Float64Var(&o.width, "width", 0, "flume width in m")
	flag.Float64Var(&o.offset, "offset", 0, "reference offset in m")
	flag.IntVar(&o.upstream, "upstream", 0, "1-based upstream station of the jump")
	flag.IntVar(&o.downstream, "downstream", 0, "1-based downstream station of the jump")
	flag.Parse()

	if o.input == "" || o.stations == "" || o.summary == "" || o.width <= 0 || o.upstream < 1 || o.downstream < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(o, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(o options, w io.Writer) int {
	fmt.Fprintln(w, "=== Flume Export Validation ===")
	fmt.Fprintln(w)

	raws, err := tsv.NewReader(o.input, slog.New(slog.NewTextHandler(io.Discard, nil))).Extract(context.Background())
	if err != nil {
		fmt.Fprintf(w, "FATAL: load source table: %v\n", err)
		return 1
	}

	stationRows, err := loadCSV(o.stations)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load station table: %v\n", err)
		return 1
	}

	summaryRows, err := loadCSV(o.summary)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load summary table: %v\n", err)
		return 1
	}

	f := domain.NewFlume(o.width, o.offset)
	bounds := domain.JumpBounds{Upstream: o.upstream, Downstream: o.downstream}
	result, err := domain.Analyze(raws, f, bounds)
	if err != nil {
		fmt.Fprintf(w, "FATAL: re-derive source table: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateStationSchema(stationRows, len(raws)),
		validateDerivationParity(stationRows, result),
		validatePhysicalConsistency(stationRows, f),
		validateSummary(summaryRows, stationRows, result, bounds),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows: %d source, %d stations, %d summary\n", len(raws), len(stationRows)-1, len(summaryRows)-1)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// loadCSV returns every record including the header.
func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s has no header", path)
	}
	for _, rec := range all {
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
	}
	return all, nil
}
