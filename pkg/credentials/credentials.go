// Package credentials keeps provider API keys in credentials.toml inside the
// .shelf/ directory, so the server can start without exported keys.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/shelf/pkg/dotdir"
)

const currentVersion = 0

// Source reports where a resolved key came from.
type Source string

const (
	SourceNone      Source = ""
	SourceConfigEnv Source = "configured environment variable"
	SourceFile      Source = "credentials.toml"
	SourceEnv       Source = "provider environment variable"
)

// providerEnvVars maps providers that need keys to their conventional
// environment variables.
var providerEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Credentials is the on-disk layout of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the API key for a single provider.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}

// Manager reads and writes credentials.toml.
type Manager struct {
	path string
}

// NewManager resolves the .shelf/ directory (override first) and returns a
// manager for the credentials file inside it. The file itself is optional.
func NewManager(override string) (*Manager, error) {
	layout, err := dotdir.NewManager().Resolve(override)
	if err != nil {
		return nil, err
	}
	return &Manager{path: layout.Credentials}, nil
}

// GetTarget returns the path of the credentials file.
func (m *Manager) GetTarget() string {
	return m.path
}

// Load returns the stored credentials, empty when the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{Version: currentVersion}

	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := toml.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}
	return creds, nil
}

// Save writes creds with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(m.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// SetKey stores key for provider, replacing any previous key.
func (m *Manager) SetKey(provider, key string) error {
	return m.update(func(c *Credentials) {
		c.Providers[provider] = ProviderCredential{APIKey: key}
	})
}

// RemoveKey deletes provider's key. Removing a missing key is not an error.
func (m *Manager) RemoveKey(provider string) error {
	return m.update(func(c *Credentials) {
		delete(c.Providers, provider)
	})
}

// GetKey returns the stored key for provider, or "" when none is stored.
func (m *Manager) GetKey(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	return creds.Providers[provider].APIKey, nil
}

// ListProviders returns the providers with stored keys, sorted.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(creds.Providers)), nil
}

// Resolve finds the API key for provider. The environment variable named by
// configuredEnv wins, then the stored key, then the provider's conventional
// environment variable.
func (m *Manager) Resolve(provider, configuredEnv string) (string, Source, error) {
	if configuredEnv != "" {
		if key := os.Getenv(configuredEnv); key != "" {
			return key, SourceConfigEnv, nil
		}
	}

	key, err := m.GetKey(provider)
	if err != nil {
		return "", SourceNone, err
	}
	if key != "" {
		return key, SourceFile, nil
	}

	if env := EnvVarForProvider(provider); env != "" {
		if key := os.Getenv(env); key != "" {
			return key, SourceEnv, nil
		}
	}
	return "", SourceNone, nil
}

func (m *Manager) update(fn func(*Credentials)) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}
	fn(creds)
	return m.Save(creds)
}

// EnvVarForProvider returns the conventional environment variable for
// provider, or "" for providers that need no key.
func EnvVarForProvider(provider string) string {
	return providerEnvVars[provider]
}

// SupportedProviders returns the providers that take API keys.
func SupportedProviders() []string {
	return slices.Sorted(maps.Keys(providerEnvVars))
}

// IsSupportedProvider reports whether provider takes an API key.
func IsSupportedProvider(provider string) bool {
	_, ok := providerEnvVars[provider]
	return ok
}
