// Package shelfcmder is the root shelf command.
package shelfcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/shelf/cmd/shelf/auth"
	chatcmder "github.com/papercomputeco/shelf/cmd/shelf/chat"
	configcmder "github.com/papercomputeco/shelf/cmd/shelf/config"
	docscmder "github.com/papercomputeco/shelf/cmd/shelf/docs"
	ingestcmder "github.com/papercomputeco/shelf/cmd/shelf/ingest"
	initcmder "github.com/papercomputeco/shelf/cmd/shelf/init"
	searchcmder "github.com/papercomputeco/shelf/cmd/shelf/search"
	servecmder "github.com/papercomputeco/shelf/cmd/shelf/serve"
	versioncmder "github.com/papercomputeco/shelf/cmd/version"
)

const shelfLongDesc string = `Shelf is a document knowledge base with retrieval-augmented answers.

Upload documents, search them semantically and ask questions answered from
their content.

Run the server:
  shelf serve

Then, from any shell:
  shelf ingest handbook.md
  shelf search "expense policy"
  shelf chat "how do I file an expense?"`

const shelfShortDesc string = "Shelf - document search and answers"

func NewShelfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shelf",
		Short:        shelfShortDesc,
		Long:         shelfLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to the .shelf directory (default: ./.shelf or ~/.shelf)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(ingestcmder.NewReuploadCmd())
	cmd.AddCommand(docscmder.NewDocsCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
