// Package chatcmder provides the chat command, which answers a question from
// the uploaded documents.
package chatcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/cmd/shelf/target"
	"github.com/papercomputeco/shelf/pkg/answer"
	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/config"
)

type chatCommander struct {
	query     string
	topK      uint
	raw       bool
	asJSON    bool
	apiTarget string
}

const chatLongDesc string = `Ask a question answered from the uploaded documents.

The server retrieves the closest chunks, hands them to the generation model as
context and returns the answer with the sources it used. Answers are rendered
as markdown unless --raw is set.

Examples:
  shelf chat "what is the refund window?"
  shelf chat "summarize the onboarding guide" --top-k 8
  shelf chat "who owns billing?" --json`

const chatShortDesc string = "Ask a question about the uploaded documents"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = strings.Join(args, " ")

			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var resp *answer.ChatResponse
			err = cliui.Step(os.Stderr, "Thinking", func() error {
				var err error
				resp, err = client.Chat(ctx, cmder.query, int(cmder.topK))
				return err
			})
			if resp == nil {
				return err
			}

			if cmder.asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(resp); encErr != nil {
					return encErr
				}
				return err
			}

			cmder.print(resp)
			return err
		},
	}

	target.AddFlag(cmd, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the answer without markdown rendering")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw JSON response")

	return cmd
}

func (c *chatCommander) print(resp *answer.ChatResponse) {
	text := resp.Answer
	if !c.raw {
		// RenderMarkdown returns the input unchanged on failure.
		text, _ = cliui.RenderMarkdown(resp.Answer)
	}
	fmt.Println()
	fmt.Println(text)

	fmt.Printf("  %s\n", cliui.HeaderStyle.Render(Summary(resp)))
	for _, src := range resp.Sources {
		fmt.Printf("    %s %s\n",
			cliui.KeyStyle.Render(src.Filename),
			cliui.DimStyle.Render(fmt.Sprintf("(similarity %.3f)", src.Similarity)),
		)
	}
	fmt.Println()
}

// Summary describes how an answer was produced.
func Summary(resp *answer.ChatResponse) string {
	return fmt.Sprintf("%d sources, relevance %.3f, %s, %s",
		resp.Metadata.SourcesUsed,
		resp.Metadata.RelevanceScore,
		resp.Quality.Rating,
		resp.Metadata.ModelUsed,
	)
}
