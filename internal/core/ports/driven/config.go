package driven

import "github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"

// SettingsStore loads and persists application settings.
type SettingsStore interface {
	// Load returns the stored settings merged over the defaults, with
	// secrets resolved from the environment, validated.
	Load() (domain.Settings, error)

	// Save writes settings. Resolved secrets are never written.
	Save(settings domain.Settings) error

	// Path returns where settings are stored.
	Path() string
}
