package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imperius/imperius/internal/abtest"
	"github.com/imperius/imperius/internal/config"
	"github.com/imperius/imperius/internal/logging"
	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/server"
	"github.com/imperius/imperius/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Imperius analytics server.

The server provides:
  - Waitlist signup and lead action tracking endpoints
  - A/B test assignment, conversion and significance endpoints
  - Live visitor count over websocket
  - Token-gated dashboard and Prometheus metrics

Example:
  imperius serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if port != 0 {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("db") || cfg.DB.Path == "" {
		cfg.DB.Path = dbPath
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	s, err := store.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	abtests := abtest.NewService(s, logger.Named("abtest"))
	scores := scoring.NewAccumulator(s, logger.Named("scoring"))

	srv := server.New(s, abtests, scores, logger.Named("http"), server.Options{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Token:     cfg.Admin.Token,
		TokenFile: tokenFilePath(),
	})

	fmt.Println()
	fmt.Printf("imperius running on http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Dashboard: http://localhost:%d/dashboard?token=%s\n", cfg.Server.Port, srv.Token())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start()
}
