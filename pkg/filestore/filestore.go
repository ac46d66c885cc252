// Package filestore keeps the raw bytes of uploaded documents.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/papercomputeco/shelf/pkg/utils"
)

// maxNameBytes is the usual per-component limit (NAME_MAX) of host
// filesystems. Stored names are "<uuid>_<name>" and must fit within it.
const maxNameBytes = 255

// Store saves, opens and removes document files.
type Store interface {
	// Save writes data to a fresh, unique path derived from name and returns
	// that path. Existing files are never overwritten.
	Save(ctx context.Context, data []byte, name string) (string, error)

	// Open returns a reader for a stored file.
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether path is present.
	Exists(path string) bool

	// Delete removes path. Missing files are not an error.
	Delete(path string) error
}

// Local stores files under a single directory.
type Local struct {
	fs  afero.Fs
	dir string
}

var _ Store = (*Local)(nil)

// NewLocal stores files in dir on the host filesystem, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	return NewLocalWithFs(afero.NewOsFs(), dir)
}

// NewLocalWithFs stores files in dir on fsys.
func NewLocalWithFs(fsys afero.Fs, dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Local{fs: fsys, dir: dir}, nil
}

// Dir returns the directory files are stored in.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes to a temporary file first and renames it into place so readers
// never observe a partial file.
func (l *Local) Save(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := afero.TempFile(l.fs, l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	final := filepath.Join(l.dir, storedName(uuid.NewString(), name))
	if err := l.fs.Rename(tmpName, final); err != nil {
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("moving file into place: %w", err)
	}

	return final, nil
}

func (l *Local) Open(path string) (io.ReadCloser, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stored file: %w", err)
	}
	return f, nil
}

func (l *Local) Exists(path string) bool {
	ok, err := afero.Exists(l.fs, path)
	return err == nil && ok
}

func (l *Local) Delete(path string) error {
	if path == "" {
		return nil
	}
	err := l.fs.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stored file: %w", err)
	}
	return nil
}

// storedName prefixes name with id and shortens name so the result fits in
// maxNameBytes. The display name is kept by the caller.
func storedName(id, name string) string {
	prefix := id + "_"
	return prefix + utils.FitFilename(filepath.Base(name), maxNameBytes-len(prefix))
}
