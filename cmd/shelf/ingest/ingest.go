// Package ingestcmder provides the ingest and reupload commands.
package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/cmd/shelf/target"
	"github.com/papercomputeco/shelf/pkg/apiclient"
	"github.com/papercomputeco/shelf/pkg/cliui"
	"github.com/papercomputeco/shelf/pkg/documents"
)

const ingestLongDesc string = `Upload documents to a running shelf API server.

Each file is extracted, split into token windows, embedded and stored. Files
whose content is already on the shelf are rejected as duplicates; use
"shelf reupload" to replace an existing document.

Examples:
  shelf ingest notes.md
  shelf ingest docs/*.txt --api-target http://localhost:9090`

const ingestShortDesc string = "Upload documents"

func NewIngestCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := target.Client(cmd)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), client, args)
		},
	}

	target.AddFlag(cmd, &apiTarget)
	return cmd
}

func runIngest(ctx context.Context, client *apiclient.Client, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	failed := 0
	for _, file := range files {
		var res string
		err := cliui.Step(os.Stderr, "Uploading "+filepath.Base(file), func() error {
			out, err := client.Upload(ctx, file)
			if err != nil {
				return err
			}
			res = fmt.Sprintf("document %d, %d chunks", out.DocumentID, out.Chunks)
			return nil
		})
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "    %s\n", cliui.DimStyle.Render(err.Error()))
			continue
		}
		fmt.Fprintf(os.Stderr, "    %s\n", cliui.DimStyle.Render(res))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

const reuploadLongDesc string = `Replace the content of an existing document.

Uploading identical content refreshes the document's chunks and keeps its
name. Different content replaces the file, name, checksum and every chunk.

Examples:
  shelf reupload 12 notes-v2.md`

const reuploadShortDesc string = "Replace a document's content"

func NewReuploadCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "reupload <id> <file>",
		Short: reuploadShortDesc,
		Long:  reuploadLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			client, err := target.Client(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var out *documents.ReuploadResult
			err = cliui.Step(os.Stderr, "Reuploading "+filepath.Base(args[1]), func() error {
				var err error
				out, err = client.Reupload(ctx, id, args[1])
				return err
			})
			if err != nil {
				return err
			}

			fmt.Printf("  %s document %d (%s): %d chunks, %s\n",
				cliui.SuccessMark, out.DocumentID, out.Mode, out.ChunksUpdated, out.Filename)
			return nil
		},
	}

	target.AddFlag(cmd, &apiTarget)
	return cmd
}
