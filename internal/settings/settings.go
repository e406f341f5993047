// ABOUTME: Locally stored endpoint overrides in a TOML settings file
// ABOUTME: Feeds the remote client's endpoint fallback chain

package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings holds user-adjustable endpoint overrides. The zero value
// means "no overrides": the remote client falls through to its
// built-in default.
type Settings struct {
	Endpoint EndpointSettings `toml:"endpoint"`
}

// EndpointSettings holds the stored backend endpoint.
type EndpointSettings struct {
	URL         string `toml:"url"`
	BearerToken string `toml:"bearer_token"`
}

// File binds Settings to a path on disk and implements the remote
// client's Overrides interface.
type File struct {
	path     string
	settings Settings
}

// DefaultPath returns the standard settings file location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, "chatsync", "settings.toml"), nil
}

// Load reads settings from path. A missing file is not an error; it
// yields zero settings so first runs work without any setup.
func Load(path string) (*File, error) {
	f := &File{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	if _, err := toml.Decode(string(data), &f.settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return f, nil
}

// Save writes the settings back to disk with owner-only permissions,
// creating parent directories as needed. The token makes the file
// secret material.
func (f *File) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f.settings); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.WriteFile(f.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// Override returns the stored endpoint pair for the remote client's
// fallback chain. Empty strings mean "nothing stored".
func (f *File) Override() (string, string) {
	return f.settings.Endpoint.URL, f.settings.Endpoint.BearerToken
}

// SetEndpoint stores a new endpoint pair. Call Save to persist.
func (f *File) SetEndpoint(url, token string) {
	f.settings.Endpoint.URL = url
	f.settings.Endpoint.BearerToken = token
}

// Path returns the file's location on disk.
func (f *File) Path() string {
	return f.path
}
