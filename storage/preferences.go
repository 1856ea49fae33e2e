package storage

import "context"

// Preference keys.
const (
	PrefDefaultModel    = "defaultModel"
	PrefDefaultProvider = "defaultProvider"
	PrefSummarizerModel = "summarizerModel"
	PrefEmbeddingModel  = "embeddingModel"
)

// basePreferences is the static baseline every load is reconciled against.
var basePreferences = map[string]string{
	PrefDefaultModel:    "llama3.1:latest",
	PrefDefaultProvider: "ollama",
	PrefSummarizerModel: "qwen3:4b-instruct-2507-fp16",
	PrefEmbeddingModel:  "qwen3-embedding:8b",
}

// LoadPreferences returns the persisted preference map. Keys missing from
// the record default from the baseline and are written back immediately,
// so the stored record is self-healing.
func (s *Store) LoadPreferences(ctx context.Context) (map[string]string, error) {
	prefs, err := s.allPreferences(ctx)
	if err != nil {
		return nil, err
	}
	for key, def := range basePreferences {
		if _, ok := prefs[key]; ok {
			continue
		}
		prefs[key] = def
		if err := s.setPreference(ctx, key, def); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// SetPreference persists one preference key.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	return s.setPreference(ctx, key, value)
}
