package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/config"
	"github.com/jackzampolin/songbook/internal/home"
	"github.com/jackzampolin/songbook/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "songbook",
	Short: "Children's worship song generation with bounded music prompts",
	Long: `Songbook turns song ideas into music generation requests.

It includes:
  - Versioned markdown prompt templates with hot reload
  - A small template language with defaults and conditional sections
  - Prompt building under a 2000 character limit with lyrics truncation
  - ElevenLabs music generation with retries and categorized errors
  - Optional input tidying with a Gloo-hosted chat model`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.songbook/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "songbook home directory (default: ~/.songbook)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	// Set output format and load .env before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		api.SetOutputFormat(outputFormat)
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger returns a text logger on stdout at the given level.
func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})), nil
}

// loadEnv resolves the home directory and loads config. An explicit
// --config wins; otherwise the home directory's config.yaml is used when
// present.
func loadEnv(logger *slog.Logger) (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	path := cfgFile
	if path == "" && homeDir != "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path, logger)
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}
