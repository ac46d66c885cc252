// Package storageutils builds a storage.Store from configuration.
package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/shelf/pkg/storage"
	"github.com/papercomputeco/shelf/pkg/storage/inmemory"
	"github.com/papercomputeco/shelf/pkg/storage/postgres"
	"github.com/papercomputeco/shelf/pkg/storage/sqlite"
)

type NewStoreOpts struct {
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
	Dimensions   int
	Logger       *slog.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (storage.Store, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlite.NewDriver(sqlite.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "postgres":
		return postgres.NewDriver(ctx, o.PostgresDSN, o.Dimensions, o.Logger)
	case "memory", "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
