package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "imperius",
	Short: "Imperius - landing page waitlist, A/B testing and lead scoring backend",
	Long: `Imperius is the analytics backend for the Imperius landing page:
waitlist signups, weighted A/B test assignment, behavioral lead scoring
and conversion significance testing. Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'imperius serve').`,
	RunE: runServe, // Default action is to start the server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("IMPERIUS_DB_PATH", "./imperius.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
