package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var variants string

	cmd := &cobra.Command{
		Use:   "create-test <name>",
		Short: "Create a new A/B test",
		Long: `Create a new A/B test with named, weighted variants.

Weights are percentages and should sum to 100; omit them for an equal
split.

Examples:
  imperius create-test hero --variants "Ship Faster,Build Better"
  imperius create-test cta --variants "Sign Up:60,Get Started:40"
  imperius create-test hero            (interactive)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testName := args[0]

			if variants == "" {
				var err error
				variants, err = promptVariants()
				if err != nil {
					return err
				}
			}

			variantList, err := parseVariants(variants)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				test, err := s.CreateTest(context.Background(), testName, variantList)
				if err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created test '%s' with %d variants:\n", test.Name, len(test.Variants))
				for _, v := range test.Variants {
					fmt.Printf("  %s (%.0f%%)\n", v.Name, v.Weight)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&variants, "variants", "", `comma-separated variants, "name" or "name:weight"`)
	return cmd
}

func promptVariants() (string, error) {
	prompt := promptui.Prompt{
		Label: `Variants (comma separated, "name" or "name:weight")`,
		Validate: func(input string) error {
			_, err := parseVariants(input)
			return err
		},
	}
	return prompt.Run()
}

// parseVariants parses "A:50,B:50" (or "A,B" for an equal split) into an
// ordered variant list. Order matters: it is the walk order for weighted
// selection, and the first variant is the control.
func parseVariants(spec string) ([]store.Variant, error) {
	parts := strings.Split(spec, ",")

	var variants []store.Variant
	weighted := false

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, weightStr, hasWeight := strings.Cut(part, ":")
		name = strings.TrimSpace(name)

		v := store.Variant{Name: name}
		if hasWeight {
			weight, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil || weight < 0 || weight > 100 {
				return nil, fmt.Errorf("invalid weight for variant %q", name)
			}
			v.Weight = weight
			weighted = true
		}
		variants = append(variants, v)
	}

	if len(variants) < 2 {
		return nil, fmt.Errorf(`need at least 2 variants. Example: --variants "A,B"`)
	}

	if !weighted {
		// Equal split
		share := 100.0 / float64(len(variants))
		for i := range variants {
			variants[i].Weight = share
		}
		return variants, nil
	}

	total := 0.0
	for _, v := range variants {
		total += v.Weight
	}
	if total != 100 {
		return nil, fmt.Errorf("variant weights must sum to 100, got %.1f", total)
	}

	return variants, nil
}
