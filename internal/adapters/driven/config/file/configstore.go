package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.SettingsStore = (*ConfigStore)(nil)

// DefaultDir is the configuration directory under the user's home.
const DefaultDir = ".kb"

// ConfigStore is a file-based implementation of driven.SettingsStore using TOML.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	getenv   func(string) string
}

// NewConfigStore creates a new TOML-based config store.
// If path is empty, defaults to ~/.kb/config.toml.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, DefaultDir, "config.toml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	return &ConfigStore{filePath: path, getenv: os.Getenv}, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Exists reports whether the configuration file has been written.
func (s *ConfigStore) Exists() bool {
	_, err := os.Stat(s.filePath)
	return err == nil
}

// Load reads the TOML file over the defaults, resolves secrets from the
// environment and validates the result. A missing file yields the defaults.
func (s *ConfigStore) Load() (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc := fromSettings(domain.DefaultSettings())
	defaultBackends := fc.Embedding.Backends
	fc.Embedding.Backends = nil

	data, err := os.ReadFile(s.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No config file yet - that's fine, use defaults
	case err != nil:
		return domain.Settings{}, fmt.Errorf("reading %s: %w", s.filePath, err)
	default:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return domain.Settings{}, &domain.ConfigurationError{
				Field:  filepath.Base(s.filePath),
				Reason: err.Error(),
			}
		}
	}

	if len(fc.Embedding.Backends) == 0 {
		fc.Embedding.Backends = defaultBackends
	}

	settings := fc.toSettings()
	s.resolveSecrets(&settings)
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// resolveSecrets fills API keys from their environment variables. DSN
// passwords come from PGPASSWORD, which pgx reads itself.
func (s *ConfigStore) resolveSecrets(settings *domain.Settings) {
	for i := range settings.Embedding.Backends {
		b := &settings.Embedding.Backends[i]
		if b.APIKeyEnv != "" {
			b.APIKey = s.getenv(b.APIKeyEnv)
		}
	}
	if vs := &settings.VectorStore; vs.APIKeyEnv != "" {
		vs.APIKey = s.getenv(vs.APIKeyEnv)
	}
}

// Save writes settings to the TOML file with restricted permissions.
func (s *ConfigStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(fromSettings(settings))
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// LoadEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are skipped and variables already
// set are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// DefaultEnvFiles returns ./.env and ~/.kb/.env.
func DefaultEnvFiles() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, DefaultDir, ".env"))
	}
	return files
}
