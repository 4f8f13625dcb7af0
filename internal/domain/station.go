package domain

// Regime is the local flow regime derived from the Froude number.
type Regime string

const (
	Supercritical Regime = "SUPERCRITICAL"
	Subcritical   Regime = "SUBCRITICAL"
)

// RawStation is one validated input row, in the units of the lab sheet.
type RawStation struct {
	Line      int     `json:"line"` // 1-based data row in the source table, blank rows included
	PositionM float64 `json:"cota_m"`
	FlowM3H   float64 `json:"q_m3h"`
	Probe1CM  float64 `json:"yi1_cm"`
	Probe2CM  float64 `json:"yi2_cm"`
	Probe3CM  float64 `json:"yi3_cm"`
	DeltaZCM  float64 `json:"delta_z_cm"`
}

// HydraulicSection holds the quantities derived from a depth and a discharge
// in a rectangular channel.
type HydraulicSection struct {
	Area        float64 `json:"area"`
	Perimeter   float64 `json:"perimeter"`
	Radius      float64 `json:"radius"`
	RadiusRoot  float64 `json:"radius_root"`
	Velocity    float64 `json:"velocity"`
	Froude      float64 `json:"froude"`
	DynamicHead float64 `json:"dynamic_head"`
	TotalEnergy float64 `json:"total_energy"`
	Reynolds    float64 `json:"reynolds"`
}

// StationRecord is a raw station row together with everything derived from it.
// Records are produced once by DeriveStation and never modified afterwards.
type StationRecord struct {
	Raw RawStation `json:"raw"`

	Seq               int     `json:"seq"`
	EffectivePosition float64 `json:"effective_position"`
	FlowRate          float64 `json:"flow_rate"` // m³/s
	Depth             float64 `json:"depth"`     // m, net of bed offset

	HydraulicSection

	Regime Regime `json:"regime"`
}
