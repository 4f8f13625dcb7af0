package domain

import (
	"errors"
	"fmt"
	"math"
)

// Default physical constants used when a Flume leaves them unset.
const (
	DefaultGravity     = 9.81    // m/s²
	DefaultFlowDivisor = 3600.0  // m³/h -> m³/s
	DefaultViscosity   = 1.0e-06 // kinematic viscosity of water, m²/s
)

// Flume describes the channel geometry and the constants applied to every
// station of a run. Width and ReferenceOffset are experiment specific and have
// no defaults.
type Flume struct {
	Width           float64 `json:"width_m"`
	ReferenceOffset float64 `json:"reference_offset_m"`
	Gravity         float64 `json:"gravity"`
	FlowDivisor     float64 `json:"flow_divisor"`
	Viscosity       float64 `json:"viscosity"`
}

// NewFlume returns a Flume with the default gravity, flow divisor and viscosity.
func NewFlume(width, referenceOffset float64) Flume {
	return Flume{
		Width:           width,
		ReferenceOffset: referenceOffset,
		Gravity:         DefaultGravity,
		FlowDivisor:     DefaultFlowDivisor,
		Viscosity:       DefaultViscosity,
	}
}

// Validate reports the first unusable constant.
func (f Flume) Validate() error {
	if !isFinite(f.Width) || f.Width <= 0 {
		return fmt.Errorf("flume width must be positive, got %g", f.Width)
	}
	if !isFinite(f.ReferenceOffset) {
		return errors.New("flume reference offset must be finite")
	}
	if !isFinite(f.Gravity) || f.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %g", f.Gravity)
	}
	if !isFinite(f.FlowDivisor) || f.FlowDivisor <= 0 {
		return fmt.Errorf("flow divisor must be positive, got %g", f.FlowDivisor)
	}
	if !isFinite(f.Viscosity) || f.Viscosity <= 0 {
		return fmt.Errorf("viscosity must be positive, got %g", f.Viscosity)
	}
	return nil
}

// Section derives the hydraulic quantities for depth (m) and discharge (m³/s).
// seq identifies the station in returned errors.
//
// The checks run in formula order: the perimeter guards the hydraulic radius,
// the area guards the velocity, and the Froude radicand must be non-negative.
func (f Flume) Section(seq int, depth, discharge float64) (HydraulicSection, error) {
	if !isFinite(depth) {
		return HydraulicSection{}, stationErr(seq, "depth", ErrNumericDomain, "non-finite depth %g", depth)
	}
	if !isFinite(discharge) {
		return HydraulicSection{}, stationErr(seq, "flow_rate", ErrNumericDomain, "non-finite flow rate %g", discharge)
	}

	var s HydraulicSection
	s.Area = depth * f.Width
	s.Perimeter = depth*2 + f.Width

	if s.Perimeter <= 0 {
		return HydraulicSection{}, stationErr(seq, "radius", ErrDivisionByZero, "area/perimeter with perimeter %g", s.Perimeter)
	}
	s.Radius = s.Area / s.Perimeter

	if s.Area <= 0 {
		return HydraulicSection{}, stationErr(seq, "velocity", ErrDivisionByZero, "flow_rate/area with area %g (depth %g)", s.Area, depth)
	}
	s.Velocity = discharge / s.Area

	if s.Radius < 0 {
		return HydraulicSection{}, stationErr(seq, "radius_root", ErrNumericDomain, "sqrt of radius %g", s.Radius)
	}
	s.RadiusRoot = math.Sqrt(s.Radius)

	radicand := s.Area * f.Gravity / f.Width
	if radicand < 0 {
		return HydraulicSection{}, stationErr(seq, "froude", ErrNumericDomain, "sqrt of g*area/width %g", radicand)
	}
	s.Froude = s.Velocity / math.Sqrt(radicand)
	if !isFinite(s.Froude) {
		return HydraulicSection{}, stationErr(seq, "froude", ErrNumericDomain, "non-finite Froude number %g", s.Froude)
	}

	s.DynamicHead = (s.Velocity * s.Velocity) / (2 * f.Gravity)
	s.TotalEnergy = depth + s.DynamicHead

	if f.Viscosity > 0 {
		s.Reynolds = s.Velocity * s.Radius / f.Viscosity
	}
	return s, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
