// Package authcmder provides the auth command for storing provider API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/credentials"
)

const authLongDesc string = `Store API keys for embedding and generation providers.

Keys are written to credentials.toml in the .shelf/ directory with 0600
permissions. When the server starts it looks for a key in the environment
variable named by embedding.api_key_env or generation.api_key_env first,
then in credentials.toml, then in the provider's usual variable
(OPENAI_API_KEY, ANTHROPIC_API_KEY).

Supported providers: anthropic, openai

Examples:
  shelf auth openai              Prompt for an OpenAI API key
  shelf auth --list              List stored keys
  shelf auth --remove openai     Remove the stored OpenAI key
  echo $KEY | shelf auth openai  Read the key from stdin`

const authShortDesc string = "Store API keys for providers"

func NewAuthCmd() *cobra.Command {
	var (
		listFlag   bool
		removeFlag string
	)

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			mgr, err := credentials.NewManager(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			out := cmd.OutOrStdout()
			switch {
			case listFlag:
				return runList(out, mgr)
			case removeFlag != "":
				return runRemove(out, mgr, removeFlag)
			case len(args) == 0:
				return fmt.Errorf("provider argument required\n\nSupported providers: %s",
					strings.Join(credentials.SupportedProviders(), ", "))
			default:
				return runAuth(cmd, mgr, args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored keys")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the stored key for a provider")

	return cmd
}

func runAuth(cmd *cobra.Command, mgr *credentials.Manager, provider string) error {
	provider = normalize(provider)
	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	out := cmd.OutOrStdout()
	apiKey, err := readAPIKey(cmd.InOrStdin(), out, provider)
	if err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if err := mgr.SetKey(provider, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s key %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(provider),
		cliui.DimStyle.Render("("+mgr.GetTarget()+")"),
	)
	return nil
}

func runList(out io.Writer, mgr *credentials.Manager) error {
	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(out, "\n  %s No stored keys.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'shelf auth <provider>' to store one.\n\n")
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored keys"))
	for _, p := range providers {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(p),
			cliui.DimStyle.Render("overrides "+credentials.EnvVarForProvider(p)),
		)
	}
	fmt.Fprintln(out)
	return nil
}

func runRemove(out io.Writer, mgr *credentials.Manager, provider string) error {
	provider = normalize(provider)
	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s Removed %s key.\n\n", cliui.SuccessMark, cliui.KeyStyle.Render(provider))
	return nil
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// readAPIKey reads the first line of piped input, or prompts with hidden
// input when in is a terminal.
func readAPIKey(in io.Reader, out io.Writer, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter API key for %s: ", provider)
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(key), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
