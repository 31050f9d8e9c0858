package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tests",
	Long:  `List all A/B tests with their state and traffic.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		tests, err := s.ListTests(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tests: %w", err)
		}

		if len(tests) == 0 {
			fmt.Println("No tests yet. Create one with:")
			fmt.Println(`  imperius create-test hero --variants "A,B"`)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATE\tVARIANTS\tVISITORS\tCONVERSIONS\tCREATED")

		for _, test := range tests {
			samples, err := s.GetVariantSamples(ctx, test.Name)
			if err != nil {
				return fmt.Errorf("failed to get samples for test %s: %w", test.Name, err)
			}

			visitors := 0
			conversions := 0
			for _, vs := range samples {
				visitors += vs.Visitors
				conversions += vs.Conversions
			}

			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				test.Name,
				strings.ToUpper(string(test.State)),
				len(test.Variants),
				visitors,
				conversions,
				test.CreatedAt.Format("2006-01-02"),
			)
		}

		return w.Flush()
	})
}
