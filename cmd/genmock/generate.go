package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/couchcryptid/flume-jump-etl/internal/domain"
)

type options struct {
	Stations int
	JumpAt   int // last supercritical station; the roller sits at JumpAt+1

	FlowM3H  float64
	Y1CM     float64
	Width    float64
	Offset   float64
	SpacingM float64
	DeltaZCM float64

	Seed uint64
}

func defaultOptions() options {
	return options{
		Stations: 12,
		JumpAt:   5,
		FlowM3H:  30,
		Y1CM:     3.0,
		Width:    0.086,
		Offset:   15.0,
		SpacingM: 0.2,
		DeltaZCM: 0.5,
		Seed:     1,
	}
}

func (o options) validate() error {
	switch {
	case o.JumpAt < 1:
		return errors.New("jump-at must be at least 1")
	case o.JumpAt+2 > o.Stations:
		return fmt.Errorf("jump-at %d leaves no subcritical station among %d", o.JumpAt, o.Stations)
	case o.FlowM3H <= 0, o.Y1CM <= 0, o.Width <= 0, o.SpacingM <= 0:
		return errors.New("flow, y1, width and spacing must be positive")
	}
	return nil
}

// generate builds a station table whose upstream reach is supercritical at
// depth Y1CM and whose tail sits at the Belanger conjugate depth. Values are
// rounded to the precision written by writeTable so the table round-trips.
func generate(o options) ([]domain.RawStation, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	f := domain.NewFlume(o.Width, o.Offset)
	flow := domain.Round(o.FlowM3H, 1)
	y1 := o.Y1CM / 100

	sec, err := f.Section(o.JumpAt, y1, flow/f.FlowDivisor)
	if err != nil {
		return nil, fmt.Errorf("upstream section: %w", err)
	}
	if domain.ClassifyRegime(sec.Froude) != domain.Supercritical {
		return nil, fmt.Errorf("upstream depth %g cm is not supercritical at %g m3/h (Fr=%.3f)", o.Y1CM, flow, sec.Froude)
	}
	y2, err := domain.ConjugateDepth(y1, sec.Froude)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // not security sensitive

	raws := make([]domain.RawStation, o.Stations)
	for i := range raws {
		seq := i + 1
		var depth float64
		switch {
		case seq < o.JumpAt:
			depth = y1 * (1 - 0.01*float64(o.JumpAt-seq))
		case seq == o.JumpAt:
			depth = y1
		case seq == o.JumpAt+1:
			depth = (y1 + y2) / 2
		default:
			depth = y2 * (1 + 0.005*float64(seq-o.JumpAt-2))
		}

		avg := domain.Round(depth*100+o.DeltaZCM, 1)
		scatter := float64(rng.IntN(3)) / 10
		raws[i] = domain.RawStation{
			Line:      seq,
			PositionM: domain.Round(o.Offset+0.1+o.SpacingM*float64(i), 2),
			FlowM3H:   flow,
			Probe1CM:  domain.Round(avg+scatter, 1),
			Probe2CM:  avg,
			Probe3CM:  domain.Round(avg-scatter, 1),
			DeltaZCM:  domain.Round(o.DeltaZCM, 1),
		}
	}
	return raws, nil
}
