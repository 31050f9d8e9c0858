package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show dashboard URL with access token",
	Long: `Show the dashboard URL with the running server's access token.

Use this when you've scrolled past the startup message or need to share
the dashboard link.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(tokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: imperius")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := string(data)
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: imperius")
	}

	fmt.Printf("Dashboard: http://localhost:8080/dashboard?token=%s\n", token)
	return nil
}
