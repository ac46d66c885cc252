package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Catalog is a concurrency-safe, reloadable view of a Table.
type Catalog struct {
	mu     sync.RWMutex
	table  Table
	path   string
	logger *slog.Logger
}

// NewCatalog loads the table at path (or the defaults when path is empty).
func NewCatalog(path string, logger *slog.Logger) (*Catalog, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, err
	}

	return &Catalog{table: table, path: path, logger: logger}, nil
}

// NewStaticCatalog wraps a fixed table that is never reloaded.
func NewStaticCatalog(table Table) *Catalog {
	return &Catalog{table: table, logger: slog.New(slog.DiscardHandler)}
}

// Model returns the entry for model and whether it was found.
func (c *Catalog) Model(model string) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Lookup(model)
}

// MaxBatchItems returns the batch cap for model, DefaultMaxBatchItems when
// the model is unknown or has no cap.
func (c *Catalog) MaxBatchItems(model string) int {
	m, ok := c.Model(model)
	if !ok || m.MaxBatchItems <= 0 {
		return DefaultMaxBatchItems
	}
	return m.MaxBatchItems
}

// EmbeddingCost estimates the cost of embedding tokens with model, using
// DefaultInputPer1K when the model is unknown.
func (c *Catalog) EmbeddingCost(model string, tokens int) float64 {
	m, ok := c.Model(model)
	if !ok {
		m = Model{InputPer1K: DefaultInputPer1K}
	}
	return m.EmbeddingCost(tokens)
}

// Reload re-reads the backing file. The previous table stays active when the
// file fails to parse.
func (c *Catalog) Reload() error {
	table, err := LoadTable(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.table = table
	c.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever its file changes and blocks until ctx is
// cancelled. It returns immediately for catalogs without a backing file.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating catalog watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory rather than the
	// file itself.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watching catalog dir: %w", err)
	}

	target := filepath.Clean(c.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.Reload(); err != nil {
				c.logger.Warn("model catalog reload failed", "path", c.path, "error", err)
				continue
			}
			c.logger.Info("model catalog reloaded", "path", c.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("catalog watcher error: %w", err)
		}
	}
}
