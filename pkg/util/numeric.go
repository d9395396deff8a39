package util

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/edp1096/tiny-spice/internal/consts"
)

// ThermalVoltage returns kT/q for a junction temperature given in Celsius.
func ThermalVoltage(tempC float64) float64 {
	return consts.BOLTZMANN * (tempC + consts.KELVIN) / consts.CHARGE
}

// NearlyEqual reports whether a and b agree within abstol + reltol*max(|a|,|b|).
func NearlyEqual[T constraints.Float](a, b, abstol, reltol T) bool {
	if a == b {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	mag := max(abs(a), abs(b))
	return diff <= abstol+reltol*mag
}

// IsFinite reports whether every entry of values is neither NaN nor Inf.
func IsFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func abs[T constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
