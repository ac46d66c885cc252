// Package servecmder provides the serve command, which runs the shelf API
// server with its MCP endpoint.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/shelf/pkg/config"
	"github.com/papercomputeco/shelf/pkg/logger"
)

type serveCommander struct {
	flags config.FlagSet

	listen          string
	storageProvider string
	sqlitePath      string
	postgresDSN     string
	uploadDir       string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	chunkMaxTokens uint
	chunkOverlap   uint

	generationProvider string
	generationTarget   string
	generationModel    string

	eventsProvider string

	configDir string
	logFile   string
	debug     bool
	cfg       *config.Config
	logger    *slog.Logger
}

// serveFlags lists the registry keys bound to viper for this command.
var serveFlags = []string{
	config.FlagListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagUploadDir,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkMaxTokens,
	config.FlagChunkOverlap,
	config.FlagGenerationProv,
	config.FlagGenerationTgt,
	config.FlagGenerationModel,
	config.FlagEventsProvider,
}

const serveLongDesc string = `Run the shelf API server.

The server accepts document uploads, splits them into token windows, embeds
every chunk and stores it next to the document. Queries are answered by
embedding the question, ranking stored chunks by cosine distance and asking
the configured generation model to answer from the best matches.

Configuration comes from flags, SHELF_* environment variables and
config.toml in the .shelf/ directory, in that order of precedence.

Examples:
  shelf serve
  shelf serve --listen :9090 --storage-provider postgres --postgres postgres://localhost/shelf
  shelf serve --log-file /var/log/shelf.json
  shelf serve --embedding-provider ollama --embedding-model nomic-embed-text --embedding-dimensions 768`

const serveShortDesc string = "Run the shelf API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagUploadDir, &cmder.uploadDir)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, cmder.flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, cmder.flags, config.FlagChunkMaxTokens, &cmder.chunkMaxTokens)
	config.AddUintFlag(cmd, cmder.flags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddStringFlag(cmd, cmder.flags, config.FlagGenerationProv, &cmder.generationProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagGenerationTgt, &cmder.generationTarget)
	config.AddStringFlag(cmd, cmder.flags, config.FlagGenerationModel, &cmder.generationModel)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.eventsProvider)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile != "" {
		fileLogger, closer, err := logger.NewFile(c.logFile, c.debug)
		if err != nil {
			return err
		}
		defer closer.Close()
		c.logger = logger.Multi(c.logger, fileLogger)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Build(ctx, c.cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer app.Close()

	errChan := make(chan error, 1)
	go func() {
		if err := app.Server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		if err := app.Server.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		return nil
	}
}
