package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Result is the terminal artifact of one run, handed to exporters and sinks.
type Result struct {
	RunID       string          `json:"run_id"`
	ProcessedAt time.Time       `json:"processed_at"`
	Flume       Flume           `json:"flume"`
	Stations    []StationRecord `json:"stations"`
	Summary     JumpSummary     `json:"summary"`
}

// Analyze derives every station and characterizes the jump between bounds.
// Either the whole result is returned or an error; there is no partial result.
func Analyze(raws []RawStation, f Flume, bounds JumpBounds) (Result, error) {
	stations, err := DeriveStations(raws, f)
	if err != nil {
		return Result{}, fmt.Errorf("derive stations: %w", err)
	}

	summary, err := SummarizeJump(stations, bounds, f)
	if err != nil {
		return Result{}, fmt.Errorf("summarize jump: %w", err)
	}

	return Result{
		RunID:       RunID(raws, f, bounds),
		ProcessedAt: clock.Now().UTC(),
		Flume:       f,
		Stations:    stations,
		Summary:     summary,
	}, nil
}

// RunID hashes everything that determines a result. Re-running the
// same table with the same configuration yields the same ID, so sinks can
// upsert on it.
func RunID(raws []RawStation, f Flume, bounds JumpBounds) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%g|%g|%g|%g|%g|%d|%d", f.Width, f.ReferenceOffset, f.Gravity, f.FlowDivisor, f.Viscosity, bounds.Upstream, bounds.Downstream)
	for _, r := range raws {
		fmt.Fprintf(&b, "|%g,%g,%g,%g,%g,%g", r.PositionM, r.FlowM3H, r.Probe1CM, r.Probe2CM, r.Probe3CM, r.DeltaZCM)
	}
	hash := sha256.Sum256([]byte(b.String()))
	return "jump-" + hex.EncodeToString(hash[:8])
}
