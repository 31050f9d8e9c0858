package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/stats"
)

func init() {
	rootCmd.AddCommand(newSampleSizeCmd())
}

func newSampleSizeCmd() *cobra.Command {
	var (
		baseline float64
		mde      float64
	)

	cmd := &cobra.Command{
		Use:   "samplesize",
		Short: "Estimate visitors needed per variant",
		Long: `Estimate the visitors needed per variant to detect a relative lift over
a baseline conversion rate, at 95% confidence and 80% power.

This is a planning aid only; running tests are not stopped or gated by it.

Example:
  imperius samplesize --baseline 0.05 --mde 0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := stats.MinSampleSize(baseline, mde)
			if err != nil {
				return fmt.Errorf("cannot compute sample size: %w", err)
			}

			fmt.Printf("Baseline rate: %s\n", formatPercent(baseline))
			fmt.Printf("Detectable lift: %.0f%% relative (to %s)\n", mde*100, formatPercent(baseline*(1+mde)))
			fmt.Printf("Required visitors per variant: %d\n", n)
			return nil
		},
	}

	cmd.Flags().Float64Var(&baseline, "baseline", 0.05, "baseline conversion rate (0-1)")
	cmd.Flags().Float64Var(&mde, "mde", 0.2, "minimum detectable effect, relative (0.2 = +20%)")
	return cmd
}
