// Package pricing turns a mesh volume into a quoted price.
package pricing

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	// LogCoefficient scales ln(volume) in the base price
	LogCoefficient = 2.4910
	// LogOffset is subtracted from the scaled logarithm
	LogOffset = 16.04
	// Margin is applied to every base price
	Margin = 1.10
	// PETGSurcharge multiplies the price of PETG prints
	PETGSurcharge = 1.15
	// InfillThreshold is the infill percentage included in the base price
	InfillThreshold = 20
	// InfillStep is the width of one infill surcharge band
	InfillStep = 10
	// InfillStepSurcharge is added to the multiplier for each full band above the threshold
	InfillStepSurcharge = 0.05
	// MinimumPrice is the floor of every quote
	MinimumPrice = 2.0
)

// ErrInvalidVolume is returned when the volume cannot go through the formula.
var ErrInvalidVolume = errors.New("volume must be a finite positive number")

// Price computes the quote for a mesh of the given volume in mm³.
func Price(volume float64, material string, infill int) (float64, error) {
	if err := ValidateVolume(volume); err != nil {
		return 0, err
	}

	base := (LogCoefficient*math.Log(volume) - LogOffset) * Margin
	if strings.EqualFold(material, "PETG") {
		base *= PETGSurcharge
	}
	base *= InfillMultiplier(infill)

	return math.Max(MinimumPrice, Round2(base)), nil
}

// ValidateVolume rejects volumes the logarithm is undefined for.
func ValidateVolume(volume float64) error {
	if math.IsNaN(volume) || math.IsInf(volume, 0) || volume <= 0 {
		return errors.Wrapf(ErrInvalidVolume, "got %v", volume)
	}
	return nil
}

// InfillMultiplier returns the surcharge multiplier for an infill percentage.
func InfillMultiplier(infill int) float64 {
	if infill <= InfillThreshold {
		return 1
	}
	steps := (infill - InfillThreshold) / InfillStep
	return 1 + InfillStepSurcharge*float64(steps)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
