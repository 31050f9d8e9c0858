package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/store"
)

var winnerCmd = &cobra.Command{
	Use:   "winner <test> <variant>",
	Short: "Complete a test and record its winning variant",
	Long: `Mark a test completed with the given winning variant. Completed tests stop
handing out new assignments; existing sessions keep their variant.`,
	Args: cobra.ExactArgs(2),
	RunE: runWinner,
}

func init() {
	rootCmd.AddCommand(winnerCmd)
}

func runWinner(cmd *cobra.Command, args []string) error {
	testName, variant := args[0], args[1]

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		test, err := s.GetTest(ctx, testName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("test '%s' not found", testName)
			}
			return fmt.Errorf("failed to get test: %w", err)
		}

		found := false
		for _, v := range test.Variants {
			if v.Name == variant {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("variant '%s' is not part of test '%s'", variant, testName)
		}

		if err := s.UpdateTestState(ctx, testName, store.StateCompleted, variant); err != nil {
			return fmt.Errorf("failed to complete test: %w", err)
		}

		fmt.Printf("Test '%s' completed. Winner: %s\n", testName, variant)
		return nil
	})
}
