package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/stats"
	"github.com/imperius/imperius/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <name>",
	Short: "Show detailed results for a test",
	Long:  `Show detailed results including conversion rates and confidence intervals.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
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

		result := stats.AnalyzeTest(test, samples)

		fmt.Printf("TEST: %s\n", test.Name)
		fmt.Printf("STATE: %s\n", test.State)
		if test.WinnerVariant != "" {
			fmt.Printf("WINNER: %s\n", test.WinnerVariant)
		}
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           VISITORS  CONVERSIONS  RATE     95% CI")
		fmt.Println(strings.Repeat("─", 64))

		for _, v := range result.Variants {
			indicator := ""
			if v.Name == result.LeadingVariant && len(result.Variants) > 1 {
				indicator = " ← LEADING"
			}

			ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", v.CILower*100, v.CIUpper*100)
			if v.Visitors == 0 {
				ciStr = "N/A"
			}

			name := v.Name
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-8d  %-11d  %-7s  %s%s\n",
				name,
				v.Visitors,
				v.Conversions,
				formatPercent(v.Rate),
				ciStr,
				indicator,
			)
		}

		fmt.Println()

		if result.Decided {
			fmt.Printf("Statistical significance: \"%s\" leads with a significant difference from control\n", result.LeadingVariant)
		} else {
			fmt.Println("Statistical significance: not enough data to declare a winner")
		}

		return nil
	})
}
