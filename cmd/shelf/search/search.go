// Package searchcmder provides the search command for semantic search over
// stored documents.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/api"
	"github.com/papercomputeco/shelf/cmd/shelf/target"
	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/config"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/utils"
)

type searchCommander struct {
	query     string
	topK      uint
	asJSON    bool
	apiTarget string
}

const searchLongDesc string = `Search uploaded documents via the shelf API.

The query is embedded with the server's embedding model and the closest
chunks are returned, nearest first, with their cosine similarity and an
overall quality rating for the result set.

Examples:
  shelf search "how are refunds processed"
  shelf search "retention policy" --top-k 10
  shelf search "retention policy" --json | jq '.results[].filename'`

const searchShortDesc string = "Search uploaded documents"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = strings.Join(args, " ")

			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			out, err := client.Search(contextOf(cmd), cmder.query, int(cmder.topK))
			if err != nil {
				return err
			}

			if cmder.asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			PrintResults(out)
			return nil
		},
	}

	target.AddFlag(cmd, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

// PrintResults renders a search response for the terminal.
func PrintResults(out *api.SearchResponse) {
	if out.Count == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("\n%s %s  %s\n\n",
		cliui.HeaderStyle.Render("Search results for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", out.Query)),
		cliui.Rating(out.Quality.Rating),
	)

	for i, r := range out.Results {
		PrintResult(i+1, r)
	}
}

// PrintResult renders one ranked chunk.
func PrintResult(rank int, r retrieval.Result) {
	preview := utils.Truncate(strings.ReplaceAll(r.Content, "\n", " "), 160)

	fmt.Printf("  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.DimStyle.Render(fmt.Sprintf("similarity: %.4f", r.Similarity)),
		cliui.KeyStyle.Render(r.Filename),
	)
	fmt.Printf("  %s\n\n", cliui.ValueStyle.Render(preview))
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
