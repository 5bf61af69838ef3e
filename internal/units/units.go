// Package units provides the time and physical constants shared by the
// simulation. All simulation quantities are SI: seconds, meters, kilograms.
package units

// Time.
const (
	Day      = 86400.0
	Year     = 365.256363004 * Day // sidereal year, seconds
	Megayear = 1e6 * Year
)

// Planetary defaults (Earth).
const (
	EarthGravity = 9.80665 // m/s²
	EarthRadius  = 6.367e6 // m
)

// Megayears converts a duration in seconds to megayears.
func Megayears(seconds float64) float64 {
	return seconds / Megayear
}
