// Package domain models open-channel flume measurements and the hydraulic
// jump analysis derived from them.
//
// # Data Source
//
// Each station row comes from a laboratory flume run: a gauge position along
// the channel, the pump flow rate read from the flow meter and three point
// gauge depth readings taken across the section, plus the bed elevation
// offset at that station. Rows are ordered from upstream to downstream and
// the row order is the station sequence.
//
// # Units
//
//	Cota_m     gauge position, meters
//	Q_m3h      flow rate, cubic meters per hour (divided by 3600 to m³/s)
//	Yi*_cm     depth probe readings, centimeters
//	DeltaZ_cm  bed offset, centimeters, subtracted from the mean probe depth
//
// # Rectangular Section
//
// For a rectangular channel of base width W and depth y:
//
//	A = y·W            wetted area
//	P = 2y + W         wetted perimeter
//	R = A/P            hydraulic radius
//	V = Q/A            mean velocity
//	Fr = V/√(g·A/W)    Froude number (hydraulic depth A/W)
//	hv = V²/2g         velocity head
//	E = y + hv         specific energy
//
// Fr > 1 is supercritical. Fr = 1 exactly is reported as subcritical.
//
// # Hydraulic Jump
//
// The jump is bounded by two stations chosen by the operator. The upstream
// depth Y1 and Froude number Fr1 give the Belanger conjugate depth
//
//	Y2 = Y1/2 · (√(1 + 8·Fr1²) − 1)
//
// Head loss across the jump is (Y2 − Y1)³ / (4·Y1·Y2). The theoretical
// downstream section is rebuilt at the conjugate depth using the mean flow
// rate of the whole run rather than the discharge read at the downstream
// station.
//
// # Run ID
//
// Run IDs are deterministic SHA-256 hashes of the flume geometry, the jump
// bounds and every raw station value, so re-exporting the same run is
// idempotent in downstream stores. See [RunID].
package domain
