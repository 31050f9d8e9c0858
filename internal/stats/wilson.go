package stats

import "math"

// WilsonInterval calculates the 95% Wilson score confidence interval for a
// binomial proportion. It behaves better than the normal approximation for
// the small samples a young test accumulates.
func WilsonInterval(successes, trials int) (lower, upper float64) {
	if trials == 0 {
		return 0, 0
	}

	z := zAlpha
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	lower = math.Max(0, center-spread)
	upper = math.Min(1, center+spread)

	return lower, upper
}
