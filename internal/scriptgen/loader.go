package scriptgen

import (
	"embed"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig resolves selectors in the following order:
// 1. The external file at path, when path is non-empty
// 2. Embedded selectors.json
// 3. Hardcoded defaults
func LoadConfig(path string) SelectorConfig {
	if path != "" {
		sel, err := LoadSelectors(path)
		if err == nil {
			slog.Info("Loaded selectors from external file", "path", path)
			return sel
		}
		slog.Warn("Failed to load external selectors, trying embedded config", "path", path, "error", err)
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			return sel
		}
		slog.Warn("Embedded selectors failed to parse. Using defaults.", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
