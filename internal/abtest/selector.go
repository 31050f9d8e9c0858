package abtest

import "github.com/imperius/imperius/internal/store"

// SelectVariant walks variants in their configured order, accumulating
// weights, and returns the first variant whose cumulative weight exceeds r.
// Each variant owns the half-open interval [start, start+weight), so a draw
// landing exactly on a boundary selects the next variant; with r uniform
// over [0, 100) every variant's share is exactly proportional to its weight.
// If the weights sum to less than 100 and no variant is reached, the first
// variant is returned, so a misconfigured test still resolves.
func SelectVariant(variants []store.Variant, r float64) string {
	if len(variants) == 0 {
		return ""
	}

	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if r < cumulative {
			return v.Name
		}
	}

	return variants[0].Name
}
