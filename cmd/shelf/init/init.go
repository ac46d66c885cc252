// Package initcmder provides the init command for initializing a local .shelf
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/config"
)

const dirName = ".shelf"

const initLongDesc string = `Initialize a new .shelf/ directory in the current working directory.

Creates a local .shelf/ directory that takes precedence over ~/.shelf/ for
configuration, the SQLite database and uploaded files. This keeps a separate
shelf per project.

With --preset, a config.toml is written for the named provider stack:
  openai     OpenAI embeddings and answers (default settings)
  anthropic  Claude answers, embeddings from a local Ollama
  ollama     everything local through Ollama

Examples:
  shelf init
  shelf init --preset ollama`

const initShortDesc string = "Initialize a local .shelf/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Provider preset to write to config.toml (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .shelf directory: %w", err)
		}
		fmt.Printf("Initialized .shelf directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("  %s wrote %s preset to %s\n", cliui.SuccessMark, preset, cfger.GetTarget())
	return nil
}
