// Package units provides shared constants and conversions for length units
package units

import "math"

// Unit constants
const (
	M  = "m"
	CM = "cm"
	MM = "mm"
	IN = "in"
)

// metresPerInch is exact by definition.
const metresPerInch = 0.0254

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, CM, MM, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, cm, mm, in"
}

// ConvertLength converts a length from metres to the target units.
// Scene coordinates are always metres.
func ConvertLength(metres float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return metres * 100
	case MM:
		return metres * 1000
	case IN:
		return metres / metresPerInch
	case M:
		return metres
	default:
		return metres // default to metres if unknown unit
	}
}

// RimDiameterInches converts a rim radius in metres to the nominal
// diameter in inches, rounded to the nearest half inch as rim sizes are sold.
func RimDiameterInches(radiusMetres float64) float64 {
	if radiusMetres <= 0 {
		return 0
	}
	d := 2 * radiusMetres / metresPerInch
	return math.Round(d*2) / 2
}
