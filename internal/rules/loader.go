package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads a rules YAML file. Missing expressions fall back to the defaults.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules %s: %w", path, err)
	}
	defer f.Close()

	m := DefaultManifest()
	if err := yaml.NewDecoder(f).Decode(m); err != nil {
		return nil, fmt.Errorf("failed to decode rules %s: %w", path, err)
	}
	def := DefaultManifest()
	if m.Win.Mafia == "" {
		m.Win.Mafia = def.Win.Mafia
	}
	if m.Win.Town == "" {
		m.Win.Town = def.Win.Town
	}
	return m, nil
}
