package configcmder

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from config.toml in the .shelf/ directory,
falling back to the built-in default.

Examples:
  shelf config get storage.provider
  shelf config get embedding.model`

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             "Get a configuration value",
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(args[0], configDir)
		},
	}
}

func runGet(key, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return err
	}
	printTarget(cfger)

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	cliui.Field(os.Stdout, len(key), key, value)
	return nil
}
