package domain

import (
	"fmt"
	"math"
)

// JumpBounds are the 1-based sequence indices of the stations immediately
// upstream and downstream of the jump. They are chosen by the operator.
type JumpBounds struct {
	Upstream   int `json:"upstream"`
	Downstream int `json:"downstream"`
}

// Check verifies both bounds address a loaded station.
func (b JumpBounds) Check(n int) error {
	if b.Upstream < 1 || b.Upstream > n {
		return fmt.Errorf("%w: upstream station %d, loaded %d stations", ErrIndexOutOfRange, b.Upstream, n)
	}
	if b.Downstream < 1 || b.Downstream > n {
		return fmt.Errorf("%w: downstream station %d, loaded %d stations", ErrIndexOutOfRange, b.Downstream, n)
	}
	return nil
}

// JumpSummary is the scalar characterization of one hydraulic jump.
type JumpSummary struct {
	Bounds JumpBounds `json:"bounds"`

	Fr1             float64 `json:"fr01"`
	Fr2             float64 `json:"fr02"`
	Y1              float64 `json:"y1_exp"`
	Y2              float64 `json:"y2_exp"`
	Y2Theoretical   float64 `json:"y2_teor"`
	HeadLossExp     float64 `json:"hl_exp"`
	HeadLossTheor   float64 `json:"hl_teor"`
	EnergyLossExp   float64 `json:"e_perc_loss_exp"`
	EnergyLossTheor float64 `json:"e_perc_loss_teor"`
	RatioExp        float64 `json:"y2_y1_exp"`
	RatioTheor      float64 `json:"y2_y1_teor"`
	Length          float64 `json:"l_exp"`

	MeanFlowRate float64          `json:"mean_flow_rate"`
	Theoretical  HydraulicSection `json:"theoretical_section"`
}

// SummaryRow is one line of the exported summary table.
type SummaryRow struct {
	Name  string  `json:"variable_name"`
	Value float64 `json:"value"`
}

// SummaryVariables lists the summary table rows in export order.
var SummaryVariables = []string{
	"Fr01", "Fr02", "Y1exp", "Y2exp", "Y2teor", "hl_exp", "hl_teor",
	"E_perc_loss_exp", "E_perc_loss_teor", "Y2_Y1_exp", "Y2_Y1_teor", "L_exp",
}

// Rows returns the summary as the fixed 12-row table.
func (s JumpSummary) Rows() []SummaryRow {
	values := []float64{
		s.Fr1, s.Fr2, s.Y1, s.Y2, s.Y2Theoretical, s.HeadLossExp, s.HeadLossTheor,
		s.EnergyLossExp, s.EnergyLossTheor, s.RatioExp, s.RatioTheor, s.Length,
	}
	rows := make([]SummaryRow, len(values))
	for i, v := range values {
		rows[i] = SummaryRow{Name: SummaryVariables[i], Value: v}
	}
	return rows
}

// ConjugateDepth applies the Belanger momentum relation to the upstream depth
// y1 and Froude number fr1.
func ConjugateDepth(y1, fr1 float64) (float64, error) {
	if !isFinite(y1) || !isFinite(fr1) {
		return 0, fmt.Errorf("%w: conjugate depth of y1=%g fr1=%g", ErrNumericDomain, y1, fr1)
	}
	y2 := y1 * 0.5 * (-1 + math.Sqrt(1+(8*(fr1*fr1))))
	if !isFinite(y2) {
		return 0, fmt.Errorf("%w: conjugate depth overflows for y1=%g fr1=%g", ErrNumericDomain, y1, fr1)
	}
	return y2, nil
}

// HeadLoss is the energy lost across a jump between depths y1 and y2.
func HeadLoss(y1, y2 float64) (float64, error) {
	if y1 <= 0 || y2 <= 0 {
		return 0, fmt.Errorf("%w: head loss with y1=%g y2=%g", ErrDivisionByZero, y1, y2)
	}
	return math.Pow(y2-y1, 3) / (4 * y1 * y2), nil
}

// PercentEnergyLoss is the share of upstream specific energy dissipated, in percent.
func PercentEnergyLoss(upstream, downstream float64) (float64, error) {
	if upstream <= 0 {
		return 0, fmt.Errorf("%w: energy dissipation with upstream energy %g", ErrDivisionByZero, upstream)
	}
	return (upstream - downstream) / upstream * 100, nil
}

// MeanFlowRate averages the discharge (m³/s) over every station.
func MeanFlowRate(stations []StationRecord) float64 {
	if len(stations) == 0 {
		return 0
	}
	var sum float64
	for _, s := range stations {
		sum += s.FlowRate
	}
	return sum / float64(len(stations))
}

// SummarizeJump characterizes the jump between the stations named by bounds.
// The bounds are checked before any jump formula runs.
func SummarizeJump(stations []StationRecord, bounds JumpBounds, f Flume) (JumpSummary, error) {
	if err := bounds.Check(len(stations)); err != nil {
		return JumpSummary{}, err
	}
	up := stations[bounds.Upstream-1]
	down := stations[bounds.Downstream-1]

	y2t, err := ConjugateDepth(up.Depth, up.Froude)
	if err != nil {
		return JumpSummary{}, &StationError{Seq: up.Seq, Field: "y2_teor", Err: err}
	}

	hlExp, err := HeadLoss(up.Depth, down.Depth)
	if err != nil {
		return JumpSummary{}, &StationError{Seq: down.Seq, Field: "hl_exp", Err: err}
	}
	hlTheor, err := HeadLoss(up.Depth, y2t)
	if err != nil {
		return JumpSummary{}, &StationError{Seq: up.Seq, Field: "hl_teor", Err: err}
	}

	lossExp, err := PercentEnergyLoss(up.TotalEnergy, down.TotalEnergy)
	if err != nil {
		return JumpSummary{}, &StationError{Seq: up.Seq, Field: "e_perc_loss_exp", Err: err}
	}

	meanQ := MeanFlowRate(stations)
	theo, err := f.Section(down.Seq, y2t, meanQ)
	if err != nil {
		return JumpSummary{}, fmt.Errorf("theoretical section: %w", err)
	}
	lossTheor, err := PercentEnergyLoss(up.TotalEnergy, theo.TotalEnergy)
	if err != nil {
		return JumpSummary{}, &StationError{Seq: up.Seq, Field: "e_perc_loss_teor", Err: err}
	}

	return JumpSummary{
		Bounds:          bounds,
		Fr1:             up.Froude,
		Fr2:             down.Froude,
		Y1:              up.Depth,
		Y2:              down.Depth,
		Y2Theoretical:   y2t,
		HeadLossExp:     hlExp,
		HeadLossTheor:   hlTheor,
		EnergyLossExp:   lossExp,
		EnergyLossTheor: lossTheor,
		RatioExp:        down.Depth / up.Depth,
		RatioTheor:      y2t / up.Depth,
		Length:          math.Abs(down.EffectivePosition - up.EffectivePosition),
		MeanFlowRate:    meanQ,
		Theoretical:     theo,
	}, nil
}
