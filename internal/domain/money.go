package domain

import (
	"fmt"
	"math"
)

// Prices travel as rupee floats on the wire but are held as int64 paise
// everywhere inside the engine, so bid comparisons and increment checks
// stay exact.

// RupeesToPaise converts a rupee amount from a request into paise.
// A paise is the smallest unit, so anything finer than 2 decimal
// places is rejected rather than rounded away.
func RupeesToPaise(f float64) (int64, error) {
	// Scale by 1000 to look for a stray third decimal place.
	// Round first to shed float artifacts (1.10 * 1000 = 1099.9999...).
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}

	paise := math.Round(f * 100)
	return int64(paise), nil
}

// PaiseToRupees converts a paise amount back to rupees for responses.
func PaiseToRupees(p int64) float64 {
	return float64(p) / 100.0
}
