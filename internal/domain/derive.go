package domain

import "errors"

// ClassifyRegime maps a Froude number to a flow regime. Only values strictly
// above 1 are supercritical; critical flow is reported as subcritical.
func ClassifyRegime(froude float64) Regime {
	if froude > 1.0 {
		return Supercritical
	}
	return Subcritical
}

// DeriveStation converts one raw row into a StationRecord with sequence index seq.
func DeriveStation(raw RawStation, seq int, f Flume) (StationRecord, error) {
	for _, v := range []struct {
		field string
		value float64
	}{
		{"cota_m", raw.PositionM},
		{"q_m3h", raw.FlowM3H},
		{"yi1_cm", raw.Probe1CM},
		{"yi2_cm", raw.Probe2CM},
		{"yi3_cm", raw.Probe3CM},
		{"delta_z_cm", raw.DeltaZCM},
	} {
		if !isFinite(v.value) {
			return StationRecord{}, stationErr(seq, v.field, ErrNumericDomain, "non-finite input %g", v.value)
		}
	}

	rec := StationRecord{
		Raw:               raw,
		Seq:               seq,
		EffectivePosition: raw.PositionM - f.ReferenceOffset,
		FlowRate:          raw.FlowM3H / f.FlowDivisor,
	}

	meanDepth := (raw.Probe1CM + raw.Probe2CM + raw.Probe3CM) / 3 / 100
	rec.Depth = meanDepth - raw.DeltaZCM/100

	section, err := f.Section(seq, rec.Depth, rec.FlowRate)
	if err != nil {
		return StationRecord{}, err
	}
	rec.HydraulicSection = section
	rec.Regime = ClassifyRegime(section.Froude)
	return rec, nil
}

// DeriveStations derives every row in order, assigning sequence indices from 1.
// It stops at the first failing station.
func DeriveStations(raws []RawStation, f Flume) ([]StationRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]StationRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := DeriveStation(raw, i+1, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// StationSeq returns the sequence index carried by err, if any.
func StationSeq(err error) (int, bool) {
	var se *StationError
	if errors.As(err, &se) {
		return se.Seq, true
	}
	return 0, false
}
