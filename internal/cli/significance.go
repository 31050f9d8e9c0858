package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/stats"
	"github.com/imperius/imperius/internal/store"
)

var significanceCmd = &cobra.Command{
	Use:   "significance <name>",
	Short: "Run a z-test of each variant against the control",
	Long: `Run a pooled two-proportion z-test of every challenger variant against
the control (the first configured variant) and print z-score, p-value and
verdict at alpha = 0.05.`,
	Args: cobra.ExactArgs(1),
	RunE: runSignificance,
}

func init() {
	rootCmd.AddCommand(significanceCmd)
}

func runSignificance(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		test, err := s.GetTest(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("test '%s' not found", name)
			}
			return fmt.Errorf("failed to get test: %w", err)
		}

		samples, err := s.GetVariantSamples(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get samples: %w", err)
		}

		sampleMap := make(map[string]store.VariantSample, len(samples))
		for _, vs := range samples {
			sampleMap[vs.Variant] = vs
		}

		if len(test.Variants) < 2 {
			return fmt.Errorf("test '%s' has fewer than 2 variants", name)
		}

		controlName := test.Variants[0].Name
		control := stats.Sample{
			Conversions: sampleMap[controlName].Conversions,
			Visitors:    sampleMap[controlName].Visitors,
		}

		fmt.Printf("TEST: %s (control: %s, %d/%d)\n\n", test.Name, controlName, control.Conversions, control.Visitors)

		for _, v := range test.Variants[1:] {
			challenger := stats.Sample{
				Conversions: sampleMap[v.Name].Conversions,
				Visitors:    sampleMap[v.Name].Visitors,
			}

			sig, err := stats.CalculateSignificance(control, challenger)
			if errors.Is(err, stats.ErrInsufficientData) {
				fmt.Printf("%s: insufficient data (%d/%d)\n", v.Name, challenger.Conversions, challenger.Visitors)
				continue
			}
			if err != nil {
				return err
			}

			verdict := "not significant"
			if sig.IsSignificant {
				verdict = fmt.Sprintf("SIGNIFICANT at %.1f%% confidence", sig.Confidence)
			}

			fmt.Printf("%s: rate %s vs %s, z=%.3f, p=%.4f — %s\n",
				v.Name,
				formatPercent(challenger.Rate()),
				formatPercent(control.Rate()),
				sig.ZScore,
				sig.PValue,
				verdict,
			)
		}

		return nil
	})
}
