// Package dotdir resolves the shelf home directory and the files kept in it:
// config.toml, credentials.toml and, unless configured elsewhere, the SQLite
// database and the uploads directory.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// dirName is the name of the shelf directory.
	dirName = ".shelf"

	// HomeEnv names a directory that replaces ./.shelf and ~/.shelf.
	HomeEnv = "SHELF_HOME"

	ConfigFile      = "config.toml"
	CredentialsFile = "credentials.toml"
	DatabaseFile    = "shelf.db"
	UploadsDir      = "uploads"
)

// Layout holds absolute paths inside one resolved shelf directory.
type Layout struct {
	Dir         string
	Config      string
	Credentials string
	Database    string
	Uploads     string
}

type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{getwd: os.Getwd, homeDir: os.UserHomeDir}
}

// Target returns the absolute path of the shelf directory, creating it when
// missing. Order of precedence:
//  1. Provided override
//  2. $SHELF_HOME
//  3. Local ./.shelf/ dir, when it already exists
//  4. Home ~/.shelf/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.choose(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating shelf directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func (m *Manager) choose(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := strings.TrimSpace(os.Getenv(HomeEnv)); env != "" {
		return env, nil
	}

	cwd, err := m.getwd()
	if err == nil {
		local := filepath.Join(cwd, dirName)
		if info, statErr := os.Stat(local); statErr == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := m.homeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Resolve returns the Layout of the shelf directory Target picks.
func (m *Manager) Resolve(overrideDir string) (Layout, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return Layout{}, err
	}
	return Layout{
		Dir:         dir,
		Config:      filepath.Join(dir, ConfigFile),
		Credentials: filepath.Join(dir, CredentialsFile),
		Database:    filepath.Join(dir, DatabaseFile),
		Uploads:     filepath.Join(dir, UploadsDir),
	}, nil
}

// Path joins name onto the resolved shelf directory.
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
