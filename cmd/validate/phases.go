package main

import (
	"bytes"
	"encoding/csv"
	"math"
	"slices"
	"strconv"

	"github.com/couchcryptid/flume-jump-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

// half is the largest error introduced by rounding one exported value.
const half = 0.0005

// ── Phase 1: Station Schema ──
// Validates the header, the row count and the SEQ column.

func validateStationSchema(rows [][]string, sourceRows int) *phase {
	p := &phase{name: "Phase 1: Station Schema"}

	if !slices.Equal(rows[0], csvexport.StationColumns) {
		p.errorf("header: expected %v, got %v", csvexport.StationColumns, rows[0])
		return p
	}
	if got := len(rows) - 1; got != sourceRows {
		p.errorf("row count: source has %d stations, export has %d", sourceRows, got)
	}

	seqCol := len(csvexport.StationColumns) - 1
	for i, rec := range rows[1:] {
		if len(rec) != len(csvexport.StationColumns) {
			p.errorf("line %d: expected %d fields, got %d", i+2, len(csvexport.StationColumns), len(rec))
			continue
		}
		if rec[seqCol] != strconv.Itoa(i+1) {
			p.errorf("line %d: SEQ %q, expected %d", i+2, rec[seqCol], i+1)
		}
	}
	return p
}

// ── Phase 2: Derivation Parity ──
// Re-derives every station from the source table and compares exported cells.

func validateDerivationParity(rows [][]string, result domain.Result) *phase {
	p := &phase{name: "Phase 2: Derivation Parity"}

	var buf bytes.Buffer
	if err := csvexport.WriteStations(&buf, result.Stations); err != nil {
		p.errorf("render derived stations: %v", err)
		return p
	}
	derived, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		p.errorf("read derived stations: %v", err)
		return p
	}

	if len(derived) != len(rows) {
		p.errorf("derived %d rows, exported %d", len(derived)-1, len(rows)-1)
		return p
	}
	for i := 1; i < len(rows); i++ {
		for j, col := range csvexport.StationColumns {
			if j >= len(rows[i]) {
				break
			}
			if rows[i][j] != derived[i][j] {
				p.errorf("station %d: column %s: exported=%q, derived=%q", i, col, rows[i][j], derived[i][j])
			}
		}
	}
	return p
}

// ── Phase 3: Physical Consistency ──
// Checks identities between exported columns, allowing for rounding.

func validatePhysicalConsistency(rows [][]string, f domain.Flume) *phase {
	p := &phase{name: "Phase 3: Physical Consistency"}
	if !slices.Equal(rows[0], csvexport.StationColumns) {
		p.errorf("skipped: station header does not match")
		return p
	}
	ruleCol := slices.Index(rows[0], "rule")

	for i, rec := range rows[1:] {
		v, ok := numericRow(p, rows[0], rec, i+1)
		if !ok {
			continue
		}
		seq := i + 1

		if !near(v["eff_cota"], v["Cota_m"]-f.ReferenceOffset, 2*half) {
			p.errorf("station %d: eff_cota %g is not Cota_m - offset", seq, v["eff_cota"])
		}
		probes := (v["Yi1_cm"] + v["Yi2_cm"] + v["Yi3_cm"]) / 3
		if !near(v["y_m"], probes/100-v["DeltaZ_cm"]/100, 2*half) {
			p.errorf("station %d: y_m %g is not the probe mean net of DeltaZ", seq, v["y_m"])
		}
		if !near(v["q_m3_s"], v["Q_m3h"]/f.FlowDivisor, 2*half) {
			p.errorf("station %d: q_m3_s %g is not Q_m3h / %g", seq, v["q_m3_s"], f.FlowDivisor)
		}
		if !near(v["perimeter"], 2*v["y_m"]+f.Width, 4*half) {
			p.errorf("station %d: perimeter %g is not 2y + width", seq, v["perimeter"])
		}
		if !near(v["energ_total"], v["y_m"]+v["dym"], 3*half) {
			p.errorf("station %d: energ_total %g is not y_m + dym", seq, v["energ_total"])
		}

		regime := rec[ruleCol]
		switch fr := v["Froude"]; {
		case fr > 1+half && regime != string(domain.Supercritical):
			p.errorf("station %d: Froude %g tagged %s", seq, fr, regime)
		case fr < 1-half && regime != string(domain.Subcritical):
			p.errorf("station %d: Froude %g tagged %s", seq, fr, regime)
		}
	}
	return p
}

// ── Phase 4: Jump Summary ──
// Validates the summary table order and its agreement with the station table.

func validateSummary(rows, stationRows [][]string, result domain.Result, bounds domain.JumpBounds) *phase {
	p := &phase{name: "Phase 4: Jump Summary"}

	if !slices.Equal(rows[0], csvexport.SummaryColumns) {
		p.errorf("header: expected %v, got %v", csvexport.SummaryColumns, rows[0])
		return p
	}
	if len(rows)-1 != len(domain.SummaryVariables) {
		p.errorf("row count: expected %d, got %d", len(domain.SummaryVariables), len(rows)-1)
		return p
	}

	cells := make(map[string]string, len(rows)-1)
	for i, rec := range rows[1:] {
		if len(rec) != 2 {
			p.errorf("line %d: expected 2 fields, got %d", i+2, len(rec))
			return p
		}
		if rec[0] != domain.SummaryVariables[i] {
			p.errorf("line %d: variable %q, expected %q", i+2, rec[0], domain.SummaryVariables[i])
		}
		cells[rec[0]] = rec[1]
	}

	for _, row := range result.Summary.Rows() {
		want := strconv.FormatFloat(domain.Round(row.Value, domain.ExportDigits), 'f', -1, 64)
		if cells[row.Name] != want {
			p.errorf("%s: exported=%q, derived=%q", row.Name, cells[row.Name], want)
		}
	}

	header := stationRows[0]
	station := func(seq int, col string) string {
		j := slices.Index(header, col)
		if seq < 1 || seq >= len(stationRows) || j < 0 || j >= len(stationRows[seq]) {
			return ""
		}
		return stationRows[seq][j]
	}
	pairs := []struct {
		variable, column string
		seq              int
	}{
		{"Fr01", "Froude", bounds.Upstream},
		{"Fr02", "Froude", bounds.Downstream},
		{"Y1exp", "y_m", bounds.Upstream},
		{"Y2exp", "y_m", bounds.Downstream},
	}
	for _, pr := range pairs {
		if got := station(pr.seq, pr.column); cells[pr.variable] != got {
			p.errorf("%s=%q but station %d %s=%q", pr.variable, cells[pr.variable], pr.seq, pr.column, got)
		}
	}

	y1, err1 := strconv.ParseFloat(cells["Y1exp"], 64)
	y2, err2 := strconv.ParseFloat(cells["Y2exp"], 64)
	ratio, err3 := strconv.ParseFloat(cells["Y2_Y1_exp"], 64)
	if err1 != nil || err2 != nil || err3 != nil || y1 <= 0 {
		p.errorf("Y1exp, Y2exp and Y2_Y1_exp must be numeric with Y1exp > 0")
		return p
	}
	// Relative rounding error of a quotient is bounded by the sum of its operands'.
	tol := (y2/y1)*(half/y1+half/y2) + half
	if !near(ratio, y2/y1, tol) {
		p.errorf("Y2_Y1_exp %g is not Y2exp / Y1exp (%g)", ratio, y2/y1)
	}

	upX, errUp := strconv.ParseFloat(station(bounds.Upstream, "eff_cota"), 64)
	downX, errDown := strconv.ParseFloat(station(bounds.Downstream, "eff_cota"), 64)
	length, errL := strconv.ParseFloat(cells["L_exp"], 64)
	if errUp == nil && errDown == nil && errL == nil && !near(length, math.Abs(downX-upX), 3*half) {
		p.errorf("L_exp %g is not the distance between stations %d and %d", length, bounds.Upstream, bounds.Downstream)
	}
	return p
}

// numericRow parses every numeric column of a station row.
func numericRow(p *phase, header, rec []string, seq int) (map[string]float64, bool) {
	if len(rec) != len(header) {
		return nil, false
	}
	v := make(map[string]float64, len(header))
	for j, col := range header {
		if col == "rule" || col == "SEQ" {
			continue
		}
		x, err := strconv.ParseFloat(rec[j], 64)
		if err != nil {
			p.errorf("station %d: column %s: %q is not a number", seq, col, rec[j])
			return nil, false
		}
		v[col] = x
	}
	return v, true
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol+1e-12
}
