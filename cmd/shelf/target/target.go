// Package target resolves the API server that client commands talk to.
package target

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/pkg/apiclient"
	"github.com/papercomputeco/shelf/pkg/config"
)

// AddFlag registers --api-target on cmd.
func AddFlag(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, target)
}

// Client returns a client for the API target resolved through the usual
// precedence: --api-target, SHELF_CLIENT_API_TARGET, config.toml, default.
func Client(cmd *cobra.Command) (*apiclient.Client, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

	return apiclient.New(v.GetString(config.Flags[config.FlagAPITarget].ViperKey))
}
