package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Songbook server",
	Long: `Start the Songbook HTTP server.

Config and template files are watched while the server runs: provider
credentials, limits and the template version reload from config.yaml, and
edits under ~/.songbook/prompts take effect on the next request.

The server provides:
  - /health               - Basic server health check
  - /status               - Template and provider status
  - /metrics              - Prometheus metrics
  - /api/prompts/...      - Template inspection, rendering and checks
  - /api/music/generate   - Song generation
  - /api/songs/...        - Generated songs and audio

Examples:
  songbook serve                    # Start on the configured port (default 8080)
  songbook serve --port 3000        # Start on custom port
  songbook serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}

		h, cfgMgr, err := loadEnv(logger)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if f := cfgMgr.ConfigFile(); f != "" {
			logger.Info("loaded config", "file", f)
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config: 127.0.0.1)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config: 8080)")

	rootCmd.AddCommand(serveCmd)
}
