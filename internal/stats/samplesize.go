package stats

import (
	"errors"
	"math"
)

// Fixed z-scores for 95% confidence and 80% power, the conventional choice
// for conversion experiments.
const (
	zAlpha = 1.96
	zBeta  = 0.84
)

var ErrInvalidRate = errors.New("rates must lie strictly between 0 and 1")

// MinSampleSize returns the visitors needed per variant to detect a relative
// lift of minimumDetectableEffect over baselineRate with 95% confidence and
// 80% power, using the standard two-proportion formula.
//
// This is a standalone planning utility; nothing gates a running test on it.
func MinSampleSize(baselineRate, minimumDetectableEffect float64) (int, error) {
	p1 := baselineRate
	p2 := baselineRate * (1 + minimumDetectableEffect)

	if p1 <= 0 || p1 >= 1 || p2 <= 0 || p2 >= 1 {
		return 0, ErrInvalidRate
	}
	if p1 == p2 {
		return 0, ErrInvalidRate
	}

	pBar := (p1 + p2) / 2

	numerator := math.Pow(
		zAlpha*math.Sqrt(2*pBar*(1-pBar))+
			zBeta*math.Sqrt(p1*(1-p1)+p2*(1-p2)),
		2,
	)
	denominator := math.Pow(p2-p1, 2)

	return int(math.Ceil(numerator / denominator)), nil
}
