package stats

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a sample cannot support a z-test
// (zero visitors on either side). Callers should report "insufficient data"
// rather than let NaN propagate.
var ErrInsufficientData = errors.New("insufficient data for significance test")

// Sample is one side of a two-proportion comparison.
type Sample struct {
	Conversions int `json:"conversions"`
	Visitors    int `json:"visitors"`
}

// Rate returns the conversion rate, or 0 for an empty sample.
func (s Sample) Rate() float64 {
	if s.Visitors == 0 {
		return 0
	}
	return float64(s.Conversions) / float64(s.Visitors)
}

// Significance is the result of a two-proportion z-test between a control
// and a challenger variant.
type Significance struct {
	ZScore        float64 `json:"zScore"`
	PValue        float64 `json:"pValue"`
	IsSignificant bool    `json:"isSignificant"`
	Confidence    float64 `json:"confidence"`
}

// CalculateSignificance runs a pooled two-proportion z-test. A positive
// z-score means the variant outperforms the control. The p-value is
// two-tailed; significance is declared at alpha = 0.05.
func CalculateSignificance(control, variant Sample) (Significance, error) {
	if control.Visitors == 0 || variant.Visitors == 0 {
		return Significance{}, ErrInsufficientData
	}

	p1 := control.Rate()
	p2 := variant.Rate()

	// Pooled proportion under the null hypothesis
	pooled := float64(control.Conversions+variant.Conversions) /
		float64(control.Visitors+variant.Visitors)

	se := math.Sqrt(pooled * (1 - pooled) *
		(1/float64(control.Visitors) + 1/float64(variant.Visitors)))

	if se == 0 {
		// Pooled rate of exactly 0 or 1, so both samples converted at the
		// same rate. No detectable difference.
		return Significance{ZScore: 0, PValue: 1, IsSignificant: false, Confidence: 0}, nil
	}

	z := (p2 - p1) / se
	pValue := 2 * (1 - normalCDF(math.Abs(z)))

	// Guard against approximation drift at the tails
	if pValue < 0 {
		pValue = 0
	}
	if pValue > 1 {
		pValue = 1
	}

	return Significance{
		ZScore:        z,
		PValue:        pValue,
		IsSignificant: pValue < 0.05,
		Confidence:    math.Min(99.9, (1-pValue)*100),
	}, nil
}

// normalCDF approximates the cumulative distribution function of the
// standard normal distribution using the erf approximation from Abramowitz
// and Stegun, Handbook of Mathematical Functions, formula 7.1.26.
// Maximum error is about 1.5e-7, more than enough for conversion data.
func normalCDF(x float64) float64 {
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
