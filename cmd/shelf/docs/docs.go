// Package docscmder provides the docs command for browsing and deleting
// stored documents.
package docscmder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/cmd/shelf/target"
	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/storage"
	"github.com/papercomputeco/shelf/pkg/utils"
)

const docsLongDesc string = `Browse and manage documents on a running shelf API server.

Examples:
  shelf docs list --page 2
  shelf docs get 12
  shelf docs chunks 12
  shelf docs delete 12`

const docsShortDesc string = "Browse and manage documents"

func NewDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: docsShortDesc,
		Long:  docsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newChunksCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	var (
		apiTarget string
		page      int
		perPage   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			out, err := client.List(contextOf(cmd), page, perPage)
			if err != nil {
				return err
			}

			if out.Total == 0 {
				fmt.Println("No documents found.")
				return nil
			}

			fmt.Printf("\n%s\n\n", cliui.HeaderStyle.Render(
				fmt.Sprintf("Documents (page %d of %d, %d total)", out.Page, out.Pages, out.Total)))
			for _, doc := range out.Documents {
				printSummary(doc)
			}
			fmt.Println()
			return nil
		},
	}

	target.AddFlag(cmd, &apiTarget)
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", storage.DefaultPerPage, "Documents per page (max 100)")

	return cmd
}

func newGetCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			doc, err := client.Get(contextOf(cmd), id)
			if err != nil {
				return err
			}

			fmt.Println()
			cliui.Field(os.Stdout, 10, "id", strconv.FormatInt(doc.ID, 10))
			cliui.Field(os.Stdout, 10, "filename", doc.Filename)
			cliui.Field(os.Stdout, 10, "checksum", doc.Checksum)
			cliui.Field(os.Stdout, 10, "chunks", strconv.Itoa(doc.ChunkCount))
			cliui.Field(os.Stdout, 10, "created", doc.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			cliui.Field(os.Stdout, 10, "updated", doc.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Println()
			return nil
		},
	}

	target.AddFlag(cmd, &apiTarget)
	return cmd
}

func newChunksCmd() *cobra.Command {
	var (
		apiTarget string
		full      bool
	)

	cmd := &cobra.Command{
		Use:   "chunks <id>",
		Short: "Show a document's chunks in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			out, err := client.Chunks(contextOf(cmd), id)
			if err != nil {
				return err
			}

			for _, ch := range out.Chunks {
				text := ch.Content
				if !full {
					text = utils.Truncate(strings.ReplaceAll(text, "\n", " "), 100)
				}
				fmt.Printf("  %s %s\n  %s\n\n",
					cliui.RankStyle.Render(fmt.Sprintf("[%d]", ch.Index)),
					cliui.DimStyle.Render(fmt.Sprintf("%d tokens", ch.TokenCount)),
					cliui.ValueStyle.Render(text),
				)
			}
			return nil
		},
	}

	target.AddFlag(cmd, &apiTarget)
	cmd.Flags().BoolVar(&full, "full", false, "Print full chunk content")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document, its chunks and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			if err := client.Delete(contextOf(cmd), id); err != nil {
				return err
			}
			fmt.Printf("  %s deleted document %d\n", cliui.SuccessMark, id)
			return nil
		},
	}

	target.AddFlag(cmd, &apiTarget)
	return cmd
}

func printSummary(doc storage.Document) {
	fmt.Printf("  %s  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("%5d", doc.ID)),
		cliui.ValueStyle.Render(doc.Filename),
		cliui.DimStyle.Render(fmt.Sprintf("%d chunks", doc.ChunkCount)),
		cliui.DimStyle.Render(doc.UpdatedAt.Local().Format("2006-01-02 15:04")),
	)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
