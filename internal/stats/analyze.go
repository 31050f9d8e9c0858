package stats

import (
	"github.com/imperius/imperius/internal/store"
)

// VariantResult contains statistics for a single variant.
type VariantResult struct {
	Name          string        `json:"variant"`
	Visitors      int           `json:"visitors"`
	Conversions   int           `json:"conversions"`
	Rate          float64       `json:"rate"`
	CILower       float64       `json:"ciLower"`
	CIUpper       float64       `json:"ciUpper"`
	Significance  *Significance `json:"significance,omitempty"`
	IsControl     bool          `json:"isControl"`
	HasEnoughData bool          `json:"hasEnoughData"`
}

// TestResult is the full statistical picture of a test: per-variant rates
// with Wilson intervals, plus a z-test of every challenger against the
// control (the first variant in the test's configured order).
type TestResult struct {
	TestName       string          `json:"testName"`
	Variants       []VariantResult `json:"variants"`
	LeadingVariant string          `json:"leadingVariant"`
	Decided        bool            `json:"decided"`
}

// AnalyzeTest merges a test's configured variants with their observed
// samples. Variants with no traffic yet appear zero-valued.
func AnalyzeTest(test *store.Test, samples []store.VariantSample) *TestResult {
	sampleMap := make(map[string]store.VariantSample, len(samples))
	for _, s := range samples {
		sampleMap[s.Variant] = s
	}

	result := &TestResult{TestName: test.Name}

	var control Sample
	maxRate := -1.0

	for i, v := range test.Variants {
		sample := Sample{
			Conversions: sampleMap[v.Name].Conversions,
			Visitors:    sampleMap[v.Name].Visitors,
		}

		lower, upper := WilsonInterval(sample.Conversions, sample.Visitors)

		vr := VariantResult{
			Name:        v.Name,
			Visitors:    sample.Visitors,
			Conversions: sample.Conversions,
			Rate:        sample.Rate(),
			CILower:     lower,
			CIUpper:     upper,
			IsControl:   i == 0,
		}

		if i == 0 {
			control = sample
			vr.HasEnoughData = sample.Visitors > 0
		} else {
			sig, err := CalculateSignificance(control, sample)
			if err == nil {
				vr.Significance = &sig
				vr.HasEnoughData = true
				if sig.IsSignificant {
					result.Decided = true
				}
			}
		}

		if vr.Rate > maxRate {
			maxRate = vr.Rate
			result.LeadingVariant = vr.Name
		}

		result.Variants = append(result.Variants, vr)
	}

	return result
}
