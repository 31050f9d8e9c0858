package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <signups|actions|scores>",
	Short: "Export raw data",
	Long: `Export waitlist signups, lead actions for a session, or lead scores in
CSV or JSON format.

Examples:
  imperius export signups --format csv > waitlist.csv
  imperius export scores --format json > leads.json
  imperius export actions <session-id>`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		switch args[0] {
		case "signups":
			signups, err := s.ListSignups(ctx)
			if err != nil {
				return fmt.Errorf("failed to list signups: %w", err)
			}
			return exportSignups(signups)
		case "scores":
			scores, err := s.ListLeadScores(ctx, -1)
			if err != nil {
				return fmt.Errorf("failed to list lead scores: %w", err)
			}
			return exportScores(scores)
		case "actions":
			if len(args) < 2 {
				return fmt.Errorf("usage: imperius export actions <session-id>")
			}
			actions, err := s.GetActions(ctx, args[1])
			if err != nil {
				return fmt.Errorf("failed to get actions: %w", err)
			}
			return exportActions(actions)
		default:
			return fmt.Errorf("unknown export target %q: use signups, actions or scores", args[0])
		}
	})
}

func exportSignups(signups []*store.Signup) error {
	if exportFormat == "json" {
		return writeJSON(map[string]any{"signups": signups})
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "email", "session_id", "source", "business_email"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, sg := range signups {
		row := []string{
			strconv.FormatInt(sg.CreatedAt.Unix(), 10),
			sg.Email,
			sg.SessionID,
			sg.Source,
			strconv.FormatBool(sg.BusinessEmail),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func exportScores(scores []*store.LeadScore) error {
	if exportFormat == "json" {
		return writeJSON(map[string]any{"scores": scores})
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"session_id", "total", "engagement", "intent", "quality", "band", "last_calculated"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, sc := range scores {
		row := []string{
			sc.SessionID,
			strconv.Itoa(sc.TotalScore),
			strconv.Itoa(sc.EngagementScore),
			strconv.Itoa(sc.IntentScore),
			strconv.Itoa(sc.QualityScore),
			scoring.Qualify(sc.TotalScore),
			strconv.FormatInt(sc.LastCalculated.Unix(), 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func exportActions(actions []*store.Action) error {
	if exportFormat == "json" {
		return writeJSON(map[string]any{"actions": actions})
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "action_type", "action_value", "score_impact"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, a := range actions {
		row := []string{
			strconv.FormatInt(a.CreatedAt.Unix(), 10),
			a.ActionType,
			a.ActionValue,
			strconv.Itoa(a.ScoreImpact),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func writeJSON(payload any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
