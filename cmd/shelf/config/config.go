// Package configcmder provides the config command for managing persistent
// shelf configuration stored in the .shelf/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/config"
)

const configLongDesc string = `Manage persistent shelf configuration.

Configuration is stored as config.toml in the .shelf/ directory and provides
default values for command flags. CLI flags and SHELF_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example
storage.provider, embedding.model, chunking.max_tokens or generation.temperature.
Run "shelf config list" to see every key.

Examples:
  shelf config set embedding.provider ollama
  shelf config set generation.temperature 0.5
  shelf config get storage.provider
  shelf config list`

const configShortDesc string = "Manage persistent shelf configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys offers config keys for the first argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
