package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/prompts"
	"github.com/jackzampolin/songbook/internal/server/endpoints"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Work with prompt templates locally",
	Long: `Prompt commands load templates and build prompts without a server.

Templates resolve from the override directory (prompts.dir, default
~/.songbook/prompts) and then from the defaults built into the binary.

Examples:
  songbook prompt versions
  songbook prompt show 2.0
  songbook prompt render -t "Hello {{name|friend}}" --var name=Sam
  songbook prompt check --version 2.0 --theme kindness --lyrics "..."
  songbook prompt validate`,
}

type promptEnv struct {
	loader  *prompts.Loader
	version string
	logger  *slog.Logger
}

// newPromptEnv loads config and builds a loader. Logs go to stderr so
// structured output on stdout stays parseable.
func newPromptEnv() (*promptEnv, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h, mgr, err := loadEnv(logger)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	dir := cfg.Prompts.Dir
	if dir == "" {
		dir = h.PromptsDir()
	}
	return &promptEnv{
		loader:  prompts.NewLoader(logger, prompts.Sources(dir)...),
		version: cfg.Prompts.Version,
		logger:  logger,
	}, nil
}

func (e *promptEnv) builder(version string) *music.Builder {
	if version == "" {
		version = e.version
	}
	return music.NewBuilder(e.loader, version, music.WithLogger(e.logger))
}

var promptVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List template files and versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newPromptEnv()
		if err != nil {
			return err
		}
		return api.Output(endpoints.PromptsListResponse{
			Files:    env.loader.Available(),
			Versions: env.loader.Versions(),
			Current:  env.version,
		})
	},
}

var promptShowCmd = &cobra.Command{
	Use:   "show [version]",
	Short: "Show a template version (default: configured version)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newPromptEnv()
		if err != nil {
			return err
		}
		version := env.version
		if len(args) == 1 {
			version = args[0]
		}
		if _, err := env.loader.LoadVersion(version); errors.Is(err, prompts.ErrNotFound) {
			if s := env.loader.Suggest(version); len(s) > 0 {
				return fmt.Errorf("template version %q not found (did you mean: %v)", version, s)
			}
			return fmt.Errorf("template version %q not found", version)
		}
		return api.Output(env.builder(version).Info())
	},
}

var (
	renderTemplate string
	renderFile     string
	renderVars     map[string]string
)

var promptRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template with variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := renderTemplate
		if renderFile != "" {
			data, err := os.ReadFile(renderFile)
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			text = string(data)
		}
		if text == "" {
			return errors.New("one of --template or --file is required")
		}

		vars := prompts.Vars{}
		for k, v := range renderVars {
			vars[k] = v
		}
		rendered := prompts.Render(text, vars)
		return api.Output(endpoints.RenderResponse{
			Rendered:  rendered,
			Length:    music.Length(rendered),
			Variables: prompts.ExtractVariables(text),
		})
	},
}

var (
	checkVersion string
	checkInput   music.SongInput
)

var promptCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Build a prompt from song input and check its length",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkInput.Validate(); err != nil {
			return err
		}
		env, err := newPromptEnv()
		if err != nil {
			return err
		}
		b := env.builder(checkVersion)
		res := endpoints.CheckResponse{
			Version:  b.Version(),
			Fallback: b.Fallback(),
			Check:    b.Check(checkInput),
		}
		if err := api.Output(res); err != nil {
			return err
		}
		if !res.Valid {
			return errors.New(res.Message)
		}
		return nil
	},
}

var promptValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate template files (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newPromptEnv()
		if err != nil {
			return err
		}
		files := args
		if len(files) == 0 {
			files = env.loader.Available()
		}

		results := make(map[string]prompts.ValidationResult, len(files))
		invalid := 0
		for _, f := range files {
			res := env.loader.Validate(f)
			if !res.Valid {
				invalid++
			}
			results[f] = res
		}
		if err := api.Output(results); err != nil {
			return err
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d templates invalid", invalid, len(files))
		}
		return nil
	},
}

func init() {
	promptRenderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "Template text")
	promptRenderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "Read the template from a file")
	promptRenderCmd.Flags().StringToStringVar(&renderVars, "var", nil, "Variable as key=value (repeatable)")

	promptCheckCmd.Flags().StringVar(&checkVersion, "version", "", "Template version (default: configured version)")
	endpoints.AddSongInputFlags(promptCheckCmd, &checkInput)

	promptCmd.AddCommand(promptVersionsCmd, promptShowCmd, promptRenderCmd, promptCheckCmd, promptValidateCmd)
	rootCmd.AddCommand(promptCmd)
}
